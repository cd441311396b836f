package jobs

import (
	"regexp"
	"time"

	"nrega-scraper/internal/extract"
	"nrega-scraper/internal/httpclient"
	"nrega-scraper/internal/targets"
)

// Spec is everything known about a job before configuration is applied.
type Spec struct {
	Target     targets.Target
	Descriptor extract.Descriptor
	Timeout    time.Duration
	MaxRetries int
	// Fetch overrides the shared http client settings for this job.
	Fetch httpclient.Options
}

func (s Spec) Name() string {
	return s.Target.Name
}

const (
	trackURL  = "https://nregastrep.nic.in/netnrega/dynamic_muster_track.aspx?lflag=eng&state_code=17&fin_year=2025-2026&state_name=%u092e%u0927%u094d%u092f+%u092a%u094d%u0930%u0926%u0947%u0936+&Digest=%2f0dclwkJQM2w4GAt8GjFPw"
	a1URL     = "https://nreganarep.nic.in/netnrega/app_issue.aspx?page=b&lflag=&state_name=MADHYA+PRADESH&state_code=17&district_name=BALAGHAT&district_code=1738&block_code=1738002&block_name=KHAIRLANJI&fin_year=2025-2026&source=national&Digest=AS/EzXOjY5nZjEFgC7kuSQ"
	labourURL = "https://nreganarep.nic.in/netnrega/dpc_sms_new.aspx?lflag=eng&page=b&Short_Name=MP&state_name=MADHYA+PRADESH&state_code=17&district_name=BALAGHAT&district_code=1738&block_name=KHAIRLANJI&block_code=1738002&fin_year=2025-2026&dt=&EDepartment=ALL&wrkcat=ALL&worktype=ALL&Digest=0Rg9WmyQmiHlGt6U8z1w4A"
	masterURL = "https://nreganarep.nic.in/netnrega/dpc_sms_new_dtl.aspx?page=d&Short_Name=MP&state_name=MADHYA+PRADESH&state_code=17&district_name=BALAGHAT&district_code=1738&block_name=KHAIRLANJI&block_code=1738002&fin_year=2025-2026&EDepartment=ALL&wrkcat=ALL&worktype=ALL&Digest=7pxWKhbxrTXuPBiiRtODgQ"
	achivURL  = "https://nreganarep.nic.in/netnrega/demand_emp_demand.aspx?file1=empprov&page1=b&lflag=eng&state_name=MADHYA+PRADESH&state_code=17&district_name=BALAGHAT&district_code=1738&block_code=1738002&block_name=KHAIRLANJI&fin_year=2025-2026&source=national&rbl=0&rblhpb=Both&Digest=oDzFUp3uDTVmeqEgUV5uKA"
)

// the tracker form is an ASP.NET master page, every control lives under
// ContentPlaceHolder1
const trackerPrefix = "ctl00$ContentPlaceHolder1$"

var reportDate = regexp.MustCompile(`(\d{2}-\w{3}-\d{4} \d{2}:\d{2}:\d{2} [AP]M)`)

func tracking() Spec {
	return Spec{
		Target:     targets.Target{Name: "tracking", Aliases: []string{"trakingfile.cjs"}, DefaultTab: "data"},
		Timeout:    6 * time.Minute,
		MaxRetries: 1,
		Fetch: httpclient.Options{
			Timeout: 120 * time.Second,
			Backoff: 1500 * time.Millisecond,
		},
		Descriptor: extract.Descriptor{
			Name: "tracking",
			Source: extract.Postback{
				URL: trackURL,
				Steps: []extract.FormStep{
					{Kind: extract.SelectStep, Name: trackerPrefix + "ddl_state", Value: "17"},
					{Kind: extract.SelectStep, Name: trackerPrefix + "ddl_dist", Value: "1738"},
					{Kind: extract.SelectStep, Name: trackerPrefix + "ddl_blk", Value: "1738002"},
					{Kind: extract.SelectStep, Name: trackerPrefix + "ddl_pan", Value: "ALL"},
					{Kind: extract.CheckStep, ID: "ctl00_ContentPlaceHolder1_Rbtn_pay_1"},
					{Kind: extract.SubmitStep, Name: trackerPrefix + "Button1"},
				},
			},
			Regions: []extract.Region{{
				Selectors:    []extract.Selector{extract.ByLeadingCell{Text: "SNo."}},
				StartAtLead:  "SNo.",
				UniformWidth: true,
				Optional:     true,
			}},
			Output: extract.Output{
				ClearBeforeFetch: true,
				Clear:            "A4:Z",
				DataCell:         "A4",
				Placeholder:      "No data found",
			},
		},
	}
}

func a1() Spec {
	return Spec{
		Target:     targets.Target{Name: "a1", Aliases: []string{"A1.cjs"}, DefaultTab: "R1.1"},
		Timeout:    3 * time.Minute,
		MaxRetries: 2,
		Fetch:      httpclient.Options{MaxRedirects: 3, Backoff: 1500 * time.Millisecond},
		Descriptor: extract.Descriptor{
			Name:   "a1",
			Source: extract.StaticURL{URL: a1URL},
			Info: &extract.InfoRow{Selectors: []extract.Selector{
				extract.ByIndex{Index: 1, MinRows: 1},
				extract.ByText{Keywords: []string{"DATE", "REPORT"}, Match: extract.Any},
			}},
			Regions: []extract.Region{{Selectors: []extract.Selector{
				extract.ByIndex{Index: 6, MinRows: 2},
				extract.ByHeader{
					Keywords: []string{"SNO", "PANCHAYAT", "WORK", "LABOUR"},
					Match:    extract.All,
					MinRows:  2,
				},
				extract.Largest{},
			}}},
			Output: extract.Output{InfoCell: "A3", DataCell: "A4"},
		},
	}
}

func labour() Spec {
	return Spec{
		Target:     targets.Target{Name: "labour", Aliases: []string{"labour.cjs"}, DefaultTab: "R6.09"},
		Timeout:    4 * time.Minute,
		MaxRetries: 2,
		Fetch:      httpclient.Options{Attempts: 5, MaxRedirects: 3, Backoff: 1500 * time.Millisecond},
		Descriptor: extract.Descriptor{
			Name:   "labour",
			Source: extract.StaticURL{URL: labourURL},
			Regions: []extract.Region{
				{Selectors: []extract.Selector{extract.ByIndex{Index: 1}}, Optional: true},
				{Selectors: []extract.Selector{extract.ByIndex{Index: 4}}, Optional: true},
			},
			Output: extract.Output{DataCell: "A3", Placeholder: "No rows scraped"},
		},
	}
}

func master() Spec {
	return Spec{
		Target:     targets.Target{Name: "master", Aliases: []string{"master.cjs"}, DefaultTab: "Sheet5"},
		Timeout:    3 * time.Minute,
		MaxRetries: 2,
		Descriptor: extract.Descriptor{
			Name:    "master",
			Source:  extract.StaticURL{URL: masterURL},
			Info:    &extract.InfoRow{Selectors: []extract.Selector{extract.ByIndex{Index: 1}}},
			Regions: []extract.Region{{Selectors: []extract.Selector{extract.ByIndex{Index: 2}}}},
			Output:  extract.Output{InfoCell: "A19", DataCell: "A20"},
		},
	}
}

func link() Spec {
	return Spec{
		Target:     targets.Target{Name: "link", Aliases: []string{"link.cjs"}, DefaultTab: "link"},
		Timeout:    3 * time.Minute,
		MaxRetries: 2,
		Descriptor: extract.Descriptor{
			Name:   "link",
			Source: extract.SheetCell{Cell: "B2"},
			Links:  true,
			Output: extract.Output{DataCell: "B6", Placeholder: "No links found"},
		},
	}
}

func achiv() Spec {
	return Spec{
		Target:     targets.Target{Name: "achiv", Aliases: []string{"achiv.cjs"}, DefaultTab: "achiv"},
		Timeout:    3 * time.Minute,
		MaxRetries: 2,
		Descriptor: extract.Descriptor{
			Name:   "achiv",
			Source: extract.StaticURL{URL: achivURL},
			Info: &extract.InfoRow{
				Selectors: []extract.Selector{extract.ByIndex{Index: 1}},
				Pattern:   reportDate,
				Format:    "Date: %s",
				Missing:   "Date not found",
			},
			Regions: []extract.Region{{Selectors: []extract.Selector{extract.ByIndex{Index: 5}}}},
			Output:  extract.Output{Clear: "A4:Z", DataCell: "A4"},
		},
	}
}

func works() Spec {
	return Spec{
		Target: targets.Target{
			Name:           "works",
			Aliases:        []string{"works.cjs"},
			DefaultTab:     "Sheet5",
			DefaultReadTab: "Sheet3",
		},
		Timeout:    10 * time.Minute,
		MaxRetries: 1,
		Descriptor: extract.Descriptor{
			Name:      "works",
			Source:    extract.SheetColumn{Range: "B3:B"},
			MinTables: 4,
			Meta: &extract.MetaRule{
				Selectors: []extract.Selector{extract.ByIndex{Index: 2}},
				Fields: []extract.MetaField{
					{Name: "STATE", Const: "MADHYA PRADESH"},
					{Name: "DISTRICT", Label: "DISTRICT"},
					{Name: "BLOCK", Label: "BLOCK"},
					{Name: "PANCHAYAT", Label: "PANCHAYAT"},
					{Name: "FIN YEAR", URLParam: "fin_year", Default: "UNKNOWN"},
				},
				Terminators: []string{"GRAM", "STATE", "FINANCIAL YEAR", "FIN YEAR"},
			},
			Regions: []extract.Region{{
				Selectors: []extract.Selector{extract.ByIndex{Index: 3}},
				SkipHead:  3,
				SkipTail:  1,
				Optional:  true,
			}},
			Output: extract.Output{
				ClearBeforeFetch:    true,
				Header:              []string{"STATE", "DISTRICT", "BLOCK", "PANCHAYAT", "FIN YEAR"},
				HeaderCell:          "C2",
				Clear:               "C3:Z",
				DataCell:            "C3",
				Placeholder:         "No data to write",
				NoSourcePlaceholder: "No URLs found",
			},
		},
	}
}

// Catalog returns every job in run order.
func Catalog() []Spec {
	return []Spec{
		tracking(),
		a1(),
		labour(),
		master(),
		link(),
		achiv(),
		works(),
	}
}

func Names() []string {
	catalog := Catalog()
	out := make([]string, len(catalog))
	for i, s := range catalog {
		out[i] = s.Name()
	}
	return out
}

// Lookup finds a job by name or by any of its aliases.
func Lookup(name string) (Spec, bool) {
	for _, s := range Catalog() {
		if s.Name() == name {
			return s, true
		}
		for _, alias := range s.Target.Aliases {
			if alias == name {
				return s, true
			}
		}
	}
	return Spec{}, false
}
