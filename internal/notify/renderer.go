package notify

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
)

const rsvpSubject = `{% autoescape off %}You're confirmed: {{ eventName }}{% endautoescape %}`

const rsvpText = `{% autoescape off %}Hi,

Your RSVP for {{ eventName }} is confirmed.
{% if eventDate %}
Date: {{ eventDate }}{% endif %}{% if eventTime %}
Time: {{ eventTime }}{% endif %}{% if eventLocation %}
Location: {{ eventLocation }}{% endif %}

We look forward to seeing you there.

{{ association }}
{% endautoescape %}`

const rsvpHTML = `<p>Hi,</p>
<p>Your RSVP for <strong>{{ eventName }}</strong> is confirmed.</p>
<ul>{% if eventDate %}
  <li>Date: {{ eventDate }}</li>{% endif %}{% if eventTime %}
  <li>Time: {{ eventTime }}</li>{% endif %}{% if eventLocation %}
  <li>Location: {{ eventLocation }}</li>{% endif %}
</ul>
<p>We look forward to seeing you there.</p>
<p>{{ association }}</p>`

const resetSubject = `{% autoescape off %}Reset your {{ association }} password{% endautoescape %}`

const resetText = `{% autoescape off %}Someone asked to reset the password for {{ email }}.

Your reset code is: {{ code }}

It expires in one hour. If you did not ask for this, ignore this email.

{{ association }}
{% endautoescape %}`

// Renderer turns requests into email messages with pongo2 templates.
type Renderer struct {
	association string

	rsvpSubject  *pongo2.Template
	rsvpText     *pongo2.Template
	rsvpHTML     *pongo2.Template
	resetSubject *pongo2.Template
	resetText    *pongo2.Template
}

// NewRenderer compiles the built-in templates. association is used as the sign-off.
func NewRenderer(association string) (*Renderer, error) {
	r := &Renderer{association: association}
	compile := []struct {
		dst *(*pongo2.Template)
		src string
	}{
		{&r.rsvpSubject, rsvpSubject},
		{&r.rsvpText, rsvpText},
		{&r.rsvpHTML, rsvpHTML},
		{&r.resetSubject, resetSubject},
		{&r.resetText, resetText},
	}
	for _, c := range compile {
		tpl, err := pongo2.FromString(c.src)
		if err != nil {
			return nil, fmt.Errorf("compile email template: %w", err)
		}
		*c.dst = tpl
	}
	return r, nil
}

// RSVPConfirmation renders the confirmation for req.
func (r *Renderer) RSVPConfirmation(req Request) (Message, error) {
	ctx := pongo2.Context{
		"eventName":     req.EventName,
		"eventDate":     req.EventDate,
		"eventTime":     req.EventTime,
		"eventLocation": req.EventLocation,
		"association":   r.association,
	}
	return r.render(req.To, ctx, r.rsvpSubject, r.rsvpText, r.rsvpHTML)
}

// PasswordReset renders the reset-code email.
func (r *Renderer) PasswordReset(to, code string) (Message, error) {
	ctx := pongo2.Context{
		"email":       to,
		"code":        code,
		"association": r.association,
	}
	return r.render(to, ctx, r.resetSubject, r.resetText, nil)
}

func (r *Renderer) render(to string, ctx pongo2.Context, subject, text, html *pongo2.Template) (Message, error) {
	msg := Message{To: to}
	var err error
	if msg.Subject, err = subject.Execute(ctx); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if msg.Text, err = text.Execute(ctx); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if html != nil {
		if msg.HTML, err = html.Execute(ctx); err != nil {
			return Message{}, fmt.Errorf("render html body: %w", err)
		}
	}
	return msg, nil
}
