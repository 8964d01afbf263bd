package notify

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/example/roadside-intake/internal/models"
	"github.com/example/roadside-intake/internal/util"
)

// Placeholders rendered for optional fields the submitter left out.
const (
	NotProvided     = "Not provided"
	NoDetails       = "No additional details provided"
	InternalPrefix  = "[EMERGENCY]"
	CustomerSubject = "Emergency Assistance Request Received"
)

var (
	// ErrNoRecipients is returned when a document would have nobody to go to.
	ErrNoRecipients = errors.New("notify: no recipients")

	//go:embed templates/*.tmpl
	templateFS embed.FS
)

// Config controls who receives the internal document and what the customer
// confirmation advertises.
type Config struct {
	AdminRecipients []string
	SupportHotline  string
}

// Composer renders the internal and customer documents for an enriched
// request. It is safe for concurrent use.
type Composer struct {
	admins  []string
	hotline string

	internalHTML *htmltemplate.Template
	internalText *texttemplate.Template
	customerHTML *htmltemplate.Template
	customerText *texttemplate.Template
}

// NewComposer parses the embedded templates.
func NewComposer(cfg Config) (*Composer, error) {
	admins := util.UniqueAddresses(cfg.AdminRecipients)
	if len(admins) == 0 {
		return nil, fmt.Errorf("%w: admin distribution list is empty", ErrNoRecipients)
	}

	c := &Composer{admins: admins, hotline: strings.TrimSpace(cfg.SupportHotline)}

	var err error
	if c.internalHTML, err = htmltemplate.ParseFS(templateFS, "templates/internal.html.tmpl"); err != nil {
		return nil, fmt.Errorf("notify: parse internal html: %w", err)
	}
	if c.internalText, err = texttemplate.ParseFS(templateFS, "templates/internal.txt.tmpl"); err != nil {
		return nil, fmt.Errorf("notify: parse internal text: %w", err)
	}
	if c.customerHTML, err = htmltemplate.ParseFS(templateFS, "templates/customer.html.tmpl"); err != nil {
		return nil, fmt.Errorf("notify: parse customer html: %w", err)
	}
	if c.customerText, err = texttemplate.ParseFS(templateFS, "templates/customer.txt.tmpl"); err != nil {
		return nil, fmt.Errorf("notify: parse customer text: %w", err)
	}
	return c, nil
}

// AdminRecipients returns a copy of the internal distribution list.
func (c *Composer) AdminRecipients() []string {
	return append([]string(nil), c.admins...)
}

type view struct {
	Subject          string
	RequestID        string
	Name             string
	ContactNumber    string
	TelLink          htmltemplate.URL
	Email            string
	VehicleModel     string
	VehicleRegNumber string
	AssistanceType   string
	Location         string
	Description      string
	Timestamp        string
	Hotline          string
}

func (c *Composer) view(req models.EnrichedRequest, subject string) view {
	return view{
		Subject:          subject,
		RequestID:        req.RequestID,
		Name:             orPlaceholder(req.Name, NotProvided),
		ContactNumber:    orPlaceholder(req.ContactNumber, NotProvided),
		TelLink:          htmltemplate.URL(util.TelURI(req.ContactNumber)),
		Email:            orPlaceholder(req.Email, NotProvided),
		VehicleModel:     orPlaceholder(req.VehicleModelDisplay, NotProvided),
		VehicleRegNumber: orPlaceholder(req.VehicleRegNumber, NotProvided),
		AssistanceType:   orPlaceholder(req.AssistanceTypeDisplay, NotProvided),
		Location:         orPlaceholder(req.Location, NotProvided),
		Description:      orPlaceholder(req.Description, NoDetails),
		Timestamp:        req.FormattedTimestamp,
		Hotline:          c.hotline,
	}
}

// ComposeInternal renders the high priority document for the response team.
func (c *Composer) ComposeInternal(req models.EnrichedRequest) (models.NotificationDocument, error) {
	subject := fmt.Sprintf("%s %s - %s", InternalPrefix, orPlaceholder(req.AssistanceTypeDisplay, "Assistance"), req.RequestID)
	v := c.view(req, subject)

	html, text, err := render(c.internalHTML, c.internalText, v)
	if err != nil {
		return models.NotificationDocument{}, fmt.Errorf("notify: render internal: %w", err)
	}

	return models.NotificationDocument{
		Audience:   models.AudienceInternal,
		RequestID:  req.RequestID,
		Recipients: c.AdminRecipients(),
		Subject:    subject,
		Body:       html,
		TextBody:   text,
		Priority:   models.PriorityHigh,
	}, nil
}

// ComposeCustomer renders the confirmation sent to the submitter. It fails
// with ErrNoRecipients when the request carries no email address.
func (c *Composer) ComposeCustomer(req models.EnrichedRequest) (models.NotificationDocument, error) {
	addr := strings.TrimSpace(req.Email)
	if addr == "" {
		return models.NotificationDocument{}, fmt.Errorf("%w: customer email missing", ErrNoRecipients)
	}

	subject := fmt.Sprintf("%s - %s", CustomerSubject, req.RequestID)
	v := c.view(req, subject)

	html, text, err := render(c.customerHTML, c.customerText, v)
	if err != nil {
		return models.NotificationDocument{}, fmt.Errorf("notify: render customer: %w", err)
	}

	return models.NotificationDocument{
		Audience:   models.AudienceCustomer,
		RequestID:  req.RequestID,
		Recipients: []string{addr},
		Subject:    subject,
		Body:       html,
		TextBody:   text,
		Priority:   models.PriorityNormal,
	}, nil
}

func render(h *htmltemplate.Template, t *texttemplate.Template, v view) (string, string, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, v); err != nil {
		return "", "", err
	}
	if err := t.Execute(&tb, v); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
