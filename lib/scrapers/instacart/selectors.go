package instacart

// Renderer-level selectors. The // prefixed ones are devtools search
// queries because the affordances they target are only identifiable by
// their text.
const (
	selLoginEmail    = `input[placeholder='Email']`
	selLoginContinue = `//button/span[text()='Continue']`
	selLoadMore      = `//button/span[text()='Load more orders']`
	selShowItems     = `#order-status-items-card`
	selItemRow       = `#items-card-expanded > ul > li > div`
	selDeliveryPhoto = `img[src*='orderdeliveryphoto']`
	// the emotion class hashes are stable between sessions, they only
	// rotate when the storefront frontend is redeployed
	selOrderCard = `div.e-undqvw`
)

// Parser-level selectors, resolved inside a card or item row fragment.
const (
	selCardDate      = `p.e-1ip314g`
	selCardItemCount = `p.e-zjik7`
	selCardTotal     = `p.e-sxi6eq`
	selCardCancelled = `p.e-y3vaqb`
	selCardLink      = `a.e-eevw7b`

	selItemThumbnail = `img.e-19gf9ko`
	selItemName      = `button.e-1lj7l9t span`
	selItemUnitInfo  = `p.e-1rr4qq7`
	selItemQuantity  = `div.e-1kzqopz p`
)
