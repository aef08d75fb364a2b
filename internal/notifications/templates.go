package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// Vars are the values interpolated into an email template.
type Vars struct {
	RecipientName    string
	OrderID          string
	ListingTitle     string
	AmountMinorUnits int64
	Currency         string
	TrackingNumber   string
	ReviewNotes      string
	BoxFeeMinorUnits *int64
}

// Amount renders the order total for display.
func (v Vars) Amount() string {
	return FormatMoney(v.AmountMinorUnits, v.Currency)
}

// BoxFee renders the box fee, or an empty string when none applies.
func (v Vars) BoxFee() string {
	if v.BoxFeeMinorUnits == nil {
		return ""
	}
	return FormatMoney(*v.BoxFeeMinorUnits, v.Currency)
}

type template struct {
	subject string
	body    string
}

var templates = map[enums.EmailType]template{
	enums.EmailTypeOrderConfirmation: {
		subject: "Your Teevo order is confirmed",
		body: `Hi {{.RecipientName}},

Thanks for your purchase of {{.ListingTitle}} for {{.Amount}}.
Order reference: {{.OrderID}}

We will let you know as soon as the seller ships it.`,
	},
	enums.EmailTypeItemSold: {
		subject: "You sold {{.ListingTitle}}",
		body: `Hi {{.RecipientName}},

Great news: {{.ListingTitle}} has sold for {{.Amount}}.
Order reference: {{.OrderID}}

Choose your packaging option in your seller dashboard to get it on its way.`,
	},
	enums.EmailTypePaymentReceived: {
		subject: "Payment received for order {{.OrderID}}",
		body: `Payment of {{.Amount}} was captured for {{.ListingTitle}}.
Order reference: {{.OrderID}}`,
	},
	enums.EmailTypeShippingConfirmation: {
		subject: "Your order is on its way",
		body: `Hi {{.RecipientName}},

{{.ListingTitle}} has been shipped.{{if .TrackingNumber}}
Tracking number: {{.TrackingNumber}}{{end}}

Once it arrives, please confirm receipt in your account.`,
	},
	enums.EmailTypeFundsReleased: {
		subject: "Funds released for {{.ListingTitle}}",
		body: `Hi {{.RecipientName}},

The buyer confirmed receipt of {{.ListingTitle}}. {{.Amount}} has been released to you.
Order reference: {{.OrderID}}`,
	},
	enums.EmailTypePackagingVerified: {
		subject: "Packaging approved for order {{.OrderID}}",
		body: `Hi {{.RecipientName}},

Your packaging photos for {{.ListingTitle}} were approved. You can now create your shipping label.`,
	},
	enums.EmailTypePackagingRejected: {
		subject: "Packaging needs another look for order {{.OrderID}}",
		body: `Hi {{.RecipientName}},

Your packaging photos for {{.ListingTitle}} were not approved.{{if .ReviewNotes}}
Reviewer notes: {{.ReviewNotes}}{{end}}

Please repack and submit new photos.`,
	},
}

// Render produces the subject, plain-text and HTML bodies for an email type.
func Render(emailType enums.EmailType, vars Vars) (subject, plain, html string, err error) {
	tpl, ok := templates[emailType]
	if !ok {
		return "", "", "", fmt.Errorf("no template for email type %q", emailType)
	}
	if subject, err = execText(string(emailType)+":subject", tpl.subject, vars); err != nil {
		return "", "", "", err
	}
	if plain, err = execText(string(emailType)+":body", tpl.body, vars); err != nil {
		return "", "", "", err
	}
	if html, err = execHTML(string(emailType), tpl.body, vars); err != nil {
		return "", "", "", err
	}
	return subject, plain, html, nil
}

func execText(name, body string, vars Vars) (string, error) {
	t, err := texttemplate.New(name).Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func execHTML(name, body string, vars Vars) (string, error) {
	paragraphs := strings.Split(body, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = "<p>" + strings.ReplaceAll(p, "\n", "<br>") + "</p>"
	}
	t, err := htmltemplate.New(name).Parse(strings.Join(paragraphs, "\n"))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatMoney renders minor units with the currency symbol, e.g. £100.00.
func FormatMoney(minorUnits int64, currency string) string {
	amount := decimal.NewFromInt(minorUnits).Shift(-2).StringFixed(2)
	switch strings.ToLower(currency) {
	case "gbp", "":
		return "£" + amount
	case "eur":
		return "€" + amount
	case "usd":
		return "$" + amount
	default:
		return strings.ToUpper(currency) + " " + amount
	}
}
