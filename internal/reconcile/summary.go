package reconcile

import (
	"sort"
	"sync"
	"time"
)

// State là trạng thái của một run
type State string

const (
	StateIdle      State = "idle"
	StateReading   State = "reading"
	StateMigrating State = "migrating"
	StateRewriting State = "rewriting"
	StateVerifying State = "verifying"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// RecordError là lỗi của một bản ghi, run vẫn tiếp tục với bản ghi kế tiếp
type RecordError struct {
	Label   string `json:"label"` // Collection/id hoặc natural key của bản ghi lỗi
	Message string `json:"message"`
}

// DuplicateKey báo cáo nhiều canonical cùng natural key (bản đầu tiên thắng)
type DuplicateKey struct {
	Key      string   `json:"key"`
	WinnerID string   `json:"winnerId"`
	Shadowed []string `json:"shadowed"`
}

// Summary là kết quả JSON của một run
type Summary struct {
	RunID  string       `json:"runId"`
	Job    string       `json:"job"`
	State  State        `json:"state"`
	DryRun bool         `json:"dryRun"`
	Policy BrokenPolicy `json:"policy,omitempty"` // Policy ghi đè cho run (rỗng = theo từng dependent)

	Migrated       int `json:"migrated"`
	Skipped        int `json:"skipped"`
	Updated        int `json:"updated"`
	BrokenRemoved  int `json:"brokenRemoved"`
	BrokenFlagged  int `json:"brokenFlagged"`
	BrokenReported int `json:"brokenReported"`
	Unresolved     int `json:"unresolved"` // Tham chiếu tới legacy id chưa map được (migrate lỗi)

	BrokenRemaining             int            `json:"brokenRemaining"`
	BrokenRemainingByCollection map[string]int `json:"brokenRemainingByCollection"`
	FlaggedRemaining            int            `json:"flaggedRemaining"`

	// Truncated: ít nhất một collection vượt giới hạn đọc. Khi legacy/canonical bị cắt,
	// tham chiếu hỏng chỉ được báo cáo, không xóa/đánh dấu.
	Truncated            bool     `json:"truncated"`
	TruncatedCollections []string `json:"truncatedCollections,omitempty"`

	DuplicateKeys []DuplicateKey `json:"duplicateKeys,omitempty"`
	Errors        []RecordError  `json:"errors"`
	Error         string         `json:"error,omitempty"` // Lỗi làm dừng run (state = failed)

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Timestamp  string    `json:"timestamp"`
}

// OK kiểm tra run kết thúc thành công và không còn tham chiếu hỏng
func (s *Summary) OK() bool {
	return s.State == StateDone && s.BrokenRemaining == 0
}

func (s *Summary) markTruncated(name string) {
	for _, n := range s.TruncatedCollections {
		if n == name {
			return
		}
	}
	s.Truncated = true
	s.TruncatedCollections = append(s.TruncatedCollections, name)
}

// tally gom bộ đếm và lỗi từng bản ghi, an toàn khi nhiều goroutine ghi cùng lúc
type tally struct {
	mu sync.Mutex

	migrated, skipped, updated             int
	brokenRemoved, brokenFlagged, reported int
	unresolved                             int
	errors                                 []RecordError
	deleted                                map[string]bool // collection/id đã xóa trong run
}

func (t *tally) add(counter *int, n int) {
	t.mu.Lock()
	*counter += n
	t.mu.Unlock()
}

func (t *tally) fail(label string, err error) {
	t.mu.Lock()
	t.errors = append(t.errors, RecordError{Label: label, Message: err.Error()})
	t.mu.Unlock()
}

func (t *tally) markDeleted(label string) {
	t.mu.Lock()
	if t.deleted == nil {
		t.deleted = make(map[string]bool)
	}
	t.deleted[label] = true
	t.mu.Unlock()
}

func (t *tally) isDeleted(label string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleted[label]
}

// apply chép bộ đếm vào summary; lỗi được sắp theo label để kết quả ổn định
func (t *tally) apply(s *Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.Migrated = t.migrated
	s.Skipped = t.skipped
	s.Updated = t.updated
	s.BrokenRemoved = t.brokenRemoved
	s.BrokenFlagged = t.brokenFlagged
	s.BrokenReported = t.reported
	s.Unresolved = t.unresolved

	errs := make([]RecordError, len(t.errors))
	copy(errs, t.errors)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Label < errs[j].Label })
	s.Errors = errs
}
