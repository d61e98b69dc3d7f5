package models

const (
	// StatusNotExecuted is written into every generated record.
	StatusNotExecuted = "Not yet executed"
	// CommentsPlaceholder fills the comments column of every record.
	CommentsPlaceholder = "-"
)

// TestCaseRecord is one row of the exported sheet. Status and Comments are
// fixed literals and never come from model output.
type TestCaseRecord struct {
	ID             string `json:"testCaseId"`
	Description    string `json:"description"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expectedResult"`
	Status         string `json:"status"`
	Comments       string `json:"comments"`
}

// NewTestCaseRecord fills the two fixed columns.
func NewTestCaseRecord(id, description, preconditions, steps, expected string) TestCaseRecord {
	return TestCaseRecord{
		ID:             id,
		Description:    description,
		Preconditions:  preconditions,
		Steps:          steps,
		ExpectedResult: expected,
		Status:         StatusNotExecuted,
		Comments:       CommentsPlaceholder,
	}
}

// Columns are the export headers, in record field order.
var Columns = []string{
	"Test Case ID",
	"Test Case Description",
	"Preconditions",
	"Test Steps",
	"Expected Result",
	"Status",
	"Comments",
}

// Values returns the record fields in Columns order.
func (r TestCaseRecord) Values() []string {
	return []string{r.ID, r.Description, r.Preconditions, r.Steps, r.ExpectedResult, r.Status, r.Comments}
}
