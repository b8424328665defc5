package ordersync

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"ordersync/services/ordersync/dataset"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

func newPhotoClient() *resty.Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	return client
}

// archivePhoto downloads an order's delivery photo into the photo
// directory. Failures are logged and swallowed, a lost photo is not
// worth failing the order for.
func (s Service) archivePhoto(ctx context.Context, order dataset.Order) {
	ctx, span := tracer.Start(ctx, "archivePhoto")
	defer span.End()

	photoUrl := *order.DeliveryPhotoUrl
	res, err := s.photos.R().
		SetContext(ctx).
		Get(photoUrl)
	if err != nil {
		fail(span, err)
		slog.WarnContext(ctx, "failed to download delivery photo", "url", photoUrl, "err", err)
		return
	}
	if res.StatusCode() != http.StatusOK {
		slog.WarnContext(ctx, "unexpected delivery photo status",
			"url", photoUrl, "status", res.StatusCode())
		return
	}

	err = os.MkdirAll(s.opts.PhotoDir, 0o755)
	if err != nil {
		fail(span, err)
		slog.WarnContext(ctx, "failed to create photo directory", "err", err)
		return
	}

	out := filepath.Join(s.opts.PhotoDir, photoFileName(order, photoUrl))
	err = os.WriteFile(out, res.Body(), 0o644)
	if err != nil {
		fail(span, err)
		slog.WarnContext(ctx, "failed to write delivery photo", "path", out, "err", err)
		return
	}
	slog.DebugContext(ctx, "archived delivery photo", "path", out)
}

func photoFileName(order dataset.Order, photoUrl string) string {
	ext := ".jpg"
	u, err := url.Parse(photoUrl)
	if err == nil && path.Ext(u.Path) != "" {
		ext = path.Ext(u.Path)
	}

	name := strings.NewReplacer(" ", "_", ":", "-").Replace(order.DateTime)
	// dateTime is minute resolution, two deliveries can share it; the
	// order id keeps their photos from clobbering each other
	if u, err := url.Parse(order.Url); err == nil {
		if id := path.Base(u.Path); id != "." && id != "/" {
			name += "_" + id
		}
	}
	return name + ext
}
