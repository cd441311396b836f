package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"nrega-scraper/internal/model"
	"nrega-scraper/internal/sheets"

	"github.com/stretchr/testify/require"
)

const trackURL = "https://nrega.test/netnrega/dynamic_muster_track.aspx?state_code=17"

// trackerPage renders the muster tracking form in the state reached after
// the given dropdowns were chosen.
func trackerPage(viewstate string, state, district string, result bool) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><form method="post" action="./dynamic_muster_track.aspx?state_code=17" id="aspnetForm">`)
	fmt.Fprintf(&b, `<input type="hidden" name="__VIEWSTATE" value="%s">`, viewstate)
	b.WriteString(`<input type="hidden" name="__EVENTTARGET" value=""><input type="hidden" name="__EVENTARGUMENT" value="">`)
	b.WriteString(`<select name="ddl_state"><option value="0">Select</option><option value="17"`)
	if state != "" {
		b.WriteString(` selected="selected"`)
	}
	b.WriteString(`>MADHYA PRADESH</option></select>`)
	b.WriteString(`<select name="ddl_dist"><option value="0">Select</option>`)
	if state != "" {
		b.WriteString(`<option value="1738"`)
		if district != "" {
			b.WriteString(` selected="selected"`)
		}
		b.WriteString(`>BALAGHAT</option>`)
	}
	b.WriteString(`</select>`)
	b.WriteString(`<input id="Rbtn_pay_0" type="radio" name="Rbtn_pay" value="0" checked="checked">`)
	b.WriteString(`<input id="Rbtn_pay_1" type="radio" name="Rbtn_pay" value="1">`)
	b.WriteString(`<input type="submit" name="Button1" value="Submit">`)
	b.WriteString(`</form>`)
	if result {
		b.WriteString(tableHTML(
			[]string{"SNo.", "District", "Musters"},
			[]string{"1", "BALAGHAT", "42"},
			[]string{"Total", "42"},
		))
	}
	b.WriteString(`</body></html>`)
	return []byte(b.String())
}

func TestPostbackReplaysSteps(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[trackURL] = trackerPage("v0", "", "", false)
	fetcher.onPost = func(u string, form url.Values) ([]byte, error) {
		require.Equal(t, "https://nrega.test/netnrega/dynamic_muster_track.aspx?state_code=17", u)
		switch form.Get("__EVENTTARGET") {
		case "ddl_state":
			require.Equal(t, "v0", form.Get("__VIEWSTATE"))
			return trackerPage("v1", "17", "", false), nil
		case "ddl_dist":
			require.Equal(t, "v1", form.Get("__VIEWSTATE"))
			require.Equal(t, "17", form.Get("ddl_state"))
			return trackerPage("v2", "17", "1738", false), nil
		default:
			require.Equal(t, "Submit", form.Get("Button1"))
			require.Equal(t, "1", form.Get("Rbtn_pay"))
			require.Equal(t, "1738", form.Get("ddl_dist"))
			return trackerPage("v3", "17", "1738", true), nil
		}
	}

	store := sheets.NewMemory()
	job, _ := newTestJob(Descriptor{
		Name: "tracking",
		Source: Postback{URL: trackURL, Steps: []FormStep{
			{Kind: SelectStep, Name: "ddl_state", Value: "17"},
			{Kind: SelectStep, Name: "ddl_dist", Value: "1738"},
			{Kind: CheckStep, ID: "Rbtn_pay_1"},
			{Kind: SubmitStep, Name: "Button1"},
		}},
		Regions: []Region{{
			Selectors:    []Selector{ByLeadingCell{Text: "SNo."}},
			StartAtLead:  "SNo.",
			UniformWidth: true,
			Optional:     true,
		}},
		Output: Output{ClearBeforeFetch: true, Clear: "A4:Z", DataCell: "A4", Placeholder: "No data found"},
	}, fetcher, store, model.Destination{SpreadsheetID: "sid", Tab: "data"})

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, fetcher.posts, 3)

	calls := store.Calls()
	require.Equal(t, "clear", calls[0].Op)
	require.Equal(t, model.Grid{
		{"SNo.", "District", "Musters"},
		{"1", "BALAGHAT", "42"},
	}, calls[1].Rows)
}

func TestPostbackMissingOption(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[trackURL] = trackerPage("v0", "", "", false)

	_, err := Postback{URL: trackURL, Steps: []FormStep{
		{Kind: SelectStep, Name: "ddl_dist", Value: "1738"},
	}}.Fetch(context.Background(), Env{Fetcher: fetcher})
	require.ErrorContains(t, err, "option 1738 not available in dropdown ddl_dist")
	require.Equal(t, model.KindParse, model.KindOf(err))

	_, err = Postback{URL: trackURL, Steps: []FormStep{
		{Kind: CheckStep, ID: "missing"},
	}}.Fetch(context.Background(), Env{Fetcher: fetcher})
	require.ErrorContains(t, err, "input #missing not found")
}

func TestPostbackPlaceholderWhenNoTable(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[trackURL] = trackerPage("v0", "", "", false)
	fetcher.onPost = func(u string, form url.Values) ([]byte, error) {
		return trackerPage("v1", "17", "", false), nil
	}

	store := sheets.NewMemory()
	job, _ := newTestJob(Descriptor{
		Name:   "tracking",
		Source: Postback{URL: trackURL, Steps: []FormStep{{Kind: SelectStep, Name: "ddl_state", Value: "17"}}},
		Regions: []Region{{
			Selectors: []Selector{ByLeadingCell{Text: "SNo."}},
			Optional:  true,
		}},
		Output: Output{DataCell: "A4", Placeholder: "No data found"},
	}, fetcher, store, model.Destination{SpreadsheetID: "sid", Tab: "data"})

	note, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "No data found", note)
}
