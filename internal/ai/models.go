package ai

import "context"

// Extract is the structured result of analyzing a passenger message
type Extract struct {
	Intent      string   `json:"intent,omitempty"`
	Datetime    string   `json:"datetime,omitempty"` // "2006-01-02T15:04"
	Pickup      string   `json:"pickup,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Passengers  int      `json:"passengers,omitempty"`
	Name        string   `json:"name,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	ForCustomer string   `json:"forCustomer,omitempty"`
	Missing     []string `json:"missing,omitempty"`
	Question    string   `json:"question,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

// AnalyzeRequest carries a fresh passenger message plus what is already
// known about the caller.
type AnalyzeRequest struct {
	Text     string
	UserName string

	// Known customer data, prefilled into the extraction
	KnownName   string
	KnownPhone  string
	HomeAddress string

	// Dispatcher mode: the sender books for someone else, phone not required
	Operator      bool
	PhoneRequired bool
}

// FollowUpRequest carries a reply within an ongoing booking
// conversation together with the state collected so far.
type FollowUpRequest struct {
	Text         string
	UserName     string
	Datetime     string
	Pickup       string
	Destination  string
	Passengers   int
	Name         string
	Phone        string
	Notes        string
	ForCustomer  string
	Missing      []string
	LastQuestion string
	HomeAddress  string
	Operator     bool
}

// Extractor turns free-text passenger messages into booking fields
type Extractor interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Extract, error)
	FollowUp(ctx context.Context, req FollowUpRequest) (*Extract, error)
}
