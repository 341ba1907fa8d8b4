package contact

// Inquiry is the payload of the website's contact form.
type Inquiry struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	InquiryType string `json:"inquiryType"`
	CropType    string `json:"cropType,omitempty"`
	FarmSize    string `json:"farmSize,omitempty"`
	Message     string `json:"message,omitempty"`
	// Website is the hidden honeypot field; humans leave it empty.
	Website string `json:"website,omitempty"`
}

// InquiryTypes lists the selectable inquiry types.
var InquiryTypes = []string{
	"Product Information",
	"Distributor Inquiry",
	"Support Request",
}

// CropTypes lists the selectable crop categories.
var CropTypes = []string{
	"Orchards / Fruit Trees",
	"Row Crops (Vegetables)",
	"Greenhouse / Nursery",
	"Cereals / Grains",
	"Other",
}

// FieldErrors maps a JSON field name to a user-facing validation message.
type FieldErrors map[string]string

// State is the lifecycle state of one form instance.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
)

// Outcome is returned for every submission attempt.
type Outcome struct {
	FormID   string      `json:"formId"`
	State    State       `json:"state"`
	Accepted bool        `json:"accepted"`
	Errors   FieldErrors `json:"errors,omitempty"`
}
