// internal/resolver/targets.go
package resolver

// The ranked-candidate table for the checkout flow. Each target lists its
// selectors from most site-idiomatic to generic; stages consume these entries
// rather than carrying their own selector logic.

var (
	actionVerbs = VerbFilter{
		Allow: []string{"reserve", "continue", "book", "confirm", "select", "i'll reserve", "next", "final details", "complete"},
		Deny:  []string{"search", "sign in", "filter", "menu", "register", "log in", "back", "share", "save", "map"},
	}

	dismissVerbs = VerbFilter{
		Allow: []string{"accept", "agree", "dismiss", "close", "got it", "ok", "no thanks", "decline", "reject"},
		Deny:  []string{"sign in", "register", "search"},
	}
)

// ConsentDismiss finds interstitial consent or sign-in prompts to close.
var ConsentDismiss = Target{
	Name: "consent-dismiss",
	Selectors: []string{
		"#onetrust-accept-btn-handler",
		`button[aria-label="Dismiss sign-in info."]`,
		`[role="dialog"] button[aria-label*="Dismiss"]`,
		`[role="dialog"] button[aria-label*="Close"]`,
		`[data-testid="cookie-banner"] button`,
		`[role="dialog"] button`,
	},
	Verbs:     dismissVerbs,
	Clickable: true,
	Limit:     3,
}

// SearchResults finds result entries on the search results page. Callers set
// the text to the property name, or leave it empty to take any result.
var SearchResults = Target{
	Name: "search-result",
	Selectors: []string{
		`[data-testid="property-card"] [data-testid="title-link"]`,
		`[data-testid="title-link"]`,
		`[data-testid="property-card"] [data-testid="title"]`,
		".sr_property_block a.hotel_name_link",
		".sr-hotel__name",
		`a[href*="/hotel/"]`,
	},
	Clickable: true,
	Limit:     25,
}

// RoomQuantity is the per-room quantity selector on a property page.
var RoomQuantity = Target{
	Name: "room-quantity",
	Selectors: []string{
		"select.hprt-nos-select",
		`[data-testid="select-room-quantity"] select`,
		`select[name^="nr_rooms_"]`,
	},
	Limit: 10,
}

// SubOption is the control that selects a room and continues to guest details.
var SubOption = Target{
	Name: "sub-option",
	Selectors: []string{
		"button.js-reservation-button",
		"#hp_book_now_button",
		`[data-testid="select-room-trigger"]`,
		`button[data-tooltip-class*="reserve"]`,
		".hprt-reservation-cta button",
		`button[type="submit"]`,
		`a[role="button"]`,
		"button",
	},
	Verbs:     actionVerbs,
	Clickable: true,
	Limit:     10,
}

// Continue is the control that advances from the contact form toward payment.
var Continue = Target{
	Name: "continue",
	Selectors: []string{
		`button[name="book"]`,
		`[data-testid="bp-submit-button"]`,
		"button.bui-button--primary",
		`button[type="submit"]`,
		`input[type="submit"]`,
		`a[role="button"]`,
		"button",
	},
	Verbs:     actionVerbs,
	Clickable: true,
	Limit:     10,
}

// PaymentMarkers are elements that only appear on the payable checkout step.
var PaymentMarkers = Target{
	Name: "payment-markers",
	Selectors: []string{
		`[data-testid="payment-form"]`,
		`[data-component*="payment"]`,
		`iframe[src*="payment"]`,
		`iframe[name*="card"]`,
		`input[autocomplete="cc-number"]`,
		`input[name="cc_number"]`,
		"#cc_number",
	},
	IncludeHidden: true,
	Limit:         1,
}

// Field identifies one contact-form input.
type Field string

const (
	FieldFirstName       Field = "first-name"
	FieldLastName        Field = "last-name"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldSpecialRequests Field = "special-requests"
)

// FormFields lists the contact-form fields in fill order.
var FormFields = []Field{FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldSpecialRequests}

var fieldTargets = map[Field]Target{
	FieldFirstName: {
		Name: string(FieldFirstName),
		Selectors: []string{
			"#firstname",
			`input[name="firstname"]`,
			`input[autocomplete="given-name"]`,
			`input[name*="first" i]`,
			`input[id*="first" i]`,
		},
		Limit: 1,
	},
	FieldLastName: {
		Name: string(FieldLastName),
		Selectors: []string{
			"#lastname",
			`input[name="lastname"]`,
			`input[autocomplete="family-name"]`,
			`input[name*="last" i]`,
			`input[id*="last" i]`,
		},
		Limit: 1,
	},
	FieldEmail: {
		Name: string(FieldEmail),
		Selectors: []string{
			"#email",
			`input[name="email"]`,
			`input[type="email"]`,
			`input[autocomplete="email"]`,
			`input[name*="mail" i]`,
		},
		Limit: 1,
	},
	FieldPhone: {
		Name: string(FieldPhone),
		Selectors: []string{
			"#phone",
			`input[name="phone"]`,
			`input[type="tel"]`,
			`input[autocomplete="tel"]`,
			`input[name*="phone" i]`,
		},
		Limit: 1,
	},
	FieldSpecialRequests: {
		Name: string(FieldSpecialRequests),
		Selectors: []string{
			"#remarks",
			`textarea[name="remarks"]`,
			`textarea[name*="request" i]`,
			`textarea[id*="request" i]`,
			"textarea",
		},
		Limit: 1,
	},
}

// FieldTarget returns the ranked selectors for f.
func FieldTarget(f Field) Target {
	return fieldTargets[f]
}

// ContactForm is present when the guest-details form is on the page.
var ContactForm = Target{
	Name: "contact-form",
	Selectors: append(
		append([]string{}, fieldTargets[FieldFirstName].Selectors[:3]...),
		fieldTargets[FieldEmail].Selectors[:3]...,
	),
	Limit: 1,
}
