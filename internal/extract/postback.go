package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"nrega-scraper/internal/model"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type StepKind int

const (
	// SelectStep picks an option of a dropdown and posts back with the
	// dropdown as __EVENTTARGET, the way autopostback dropdowns do.
	SelectStep StepKind = iota
	// CheckStep ticks a radio button or checkbox (found by ID) without
	// posting back. The value is carried into the next post.
	CheckStep
	// SubmitStep posts the form through the named submit button.
	SubmitStep
)

// FormStep is one interaction with an ASP.NET WebForms page.
type FormStep struct {
	Kind StepKind
	// Name of the form field (dropdown or button).
	Name string
	// Value of the option to select.
	Value string
	// ID of the input to check.
	ID string
}

func (s FormStep) String() string {
	switch s.Kind {
	case SelectStep:
		return fmt.Sprintf("select %s=%s", s.Name, s.Value)
	case CheckStep:
		return "check #" + s.ID
	default:
		return "submit " + s.Name
	}
}

// Postback loads URL and replays Steps against its form, the document after
// the last step is the one extracted from.
type Postback struct {
	URL   string
	Steps []FormStep
}

func (Postback) Multi() bool { return false }

func (p Postback) String() string { return "postback " + p.URL }

type webForm struct {
	action  string
	fields  url.Values
	options map[string][]string
	doc     *goquery.Document
}

func readForm(pageURL string, body []byte) (webForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return webForm{}, model.ParseError{URL: pageURL, Reason: "invalid html: " + err.Error()}
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return webForm{}, model.ParseError{URL: pageURL, Reason: "form not found"}
	}

	action := pageURL
	if raw, ok := form.Attr("action"); ok && strings.TrimSpace(raw) != "" {
		base, err := url.Parse(pageURL)
		if err != nil {
			return webForm{}, err
		}
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return webForm{}, model.ParseError{URL: pageURL, Reason: "invalid form action: " + raw}
		}
		action = base.ResolveReference(ref).String()
	}

	out := webForm{
		action:  action,
		fields:  url.Values{},
		options: map[string][]string{},
		doc:     doc,
	}

	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		kind := strings.ToLower(input.AttrOr("type", "text"))
		switch kind {
		case "submit", "button", "image", "reset", "file":
			return
		case "radio", "checkbox":
			if _, checked := input.Attr("checked"); !checked {
				return
			}
			out.fields.Set(name, input.AttrOr("value", "on"))
		default:
			out.fields.Set(name, input.AttrOr("value", ""))
		}
	})

	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		var (
			values   []string
			selected string
			picked   bool
		)
		sel.Find("option").Each(func(i int, opt *goquery.Selection) {
			value, ok := opt.Attr("value")
			if !ok {
				value = strings.TrimSpace(opt.Text())
			}
			values = append(values, value)
			if _, isSelected := opt.Attr("selected"); isSelected && !picked {
				selected, picked = value, true
			}
		})
		if !picked && len(values) > 0 {
			selected = values[0]
		}
		out.options[name] = values
		out.fields.Set(name, selected)
	})

	form.Find("textarea").Each(func(_ int, area *goquery.Selection) {
		name, ok := area.Attr("name")
		if !ok || name == "" {
			return
		}
		out.fields.Set(name, area.Text())
	})

	return out, nil
}

func (f webForm) clone(pending url.Values) url.Values {
	out := url.Values{}
	for k, v := range f.fields {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range pending {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (p Postback) Fetch(ctx context.Context, env Env) ([]Document, error) {
	ctx, span := tracer.Start(ctx, "Postback")
	defer span.End()

	current := p.URL
	body, err := env.Fetcher.Get(ctx, current)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initial fetch")
		return nil, err
	}

	pending := url.Values{}
	for i, step := range p.Steps {
		span.AddEvent(step.String())

		form, err := readForm(current, body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "read form")
			return nil, err
		}

		switch step.Kind {
		case CheckStep:
			input := form.doc.Find("#" + step.ID)
			name, ok := input.Attr("name")
			if input.Length() == 0 || !ok {
				return nil, model.ParseError{URL: current, Reason: fmt.Sprintf("input #%s not found", step.ID)}
			}
			pending.Set(name, input.AttrOr("value", "on"))
			continue

		case SelectStep:
			options, ok := form.options[step.Name]
			if !ok {
				return nil, model.ParseError{URL: current, Reason: fmt.Sprintf("dropdown %s not found", step.Name)}
			}
			if !slices.Contains(options, step.Value) {
				return nil, model.ParseError{
					URL:    current,
					Reason: fmt.Sprintf("option %s not available in dropdown %s", step.Value, step.Name),
				}
			}
			values := form.clone(pending)
			values.Set(step.Name, step.Value)
			values.Set("__EVENTTARGET", step.Name)
			values.Set("__EVENTARGUMENT", "")
			body, err = env.Fetcher.PostForm(ctx, form.action, values)

		case SubmitStep:
			button := form.doc.Find(fmt.Sprintf(`[name="%s"]`, step.Name))
			if button.Length() == 0 {
				return nil, model.ParseError{URL: current, Reason: fmt.Sprintf("button %s not found", step.Name)}
			}
			values := form.clone(pending)
			values.Set(step.Name, button.AttrOr("value", ""))
			values.Set("__EVENTTARGET", "")
			values.Set("__EVENTARGUMENT", "")
			body, err = env.Fetcher.PostForm(ctx, form.action, values)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "postback failed")
			return nil, fmt.Errorf("postback step %d (%s): %w", i+1, step, err)
		}
		current = form.action
		pending = url.Values{}
	}

	span.SetAttributes(attribute.Int("steps", len(p.Steps)))
	return []Document{{URL: current, Body: body}}, nil
}
