package models

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"wafer-be/utils"
)

type TalkStatus string

const (
	TalkSubmitted          TalkStatus = "S"
	TalkUnderConsideration TalkStatus = "U"
	TalkProvisional        TalkStatus = "P"
	TalkAccepted           TalkStatus = "A"
	TalkRejected           TalkStatus = "R"
	TalkCancelled          TalkStatus = "C"
	TalkWithdrawn          TalkStatus = "W"
)

var talkStatusLabels = map[TalkStatus]string{
	TalkAccepted:           "Accepted",
	TalkRejected:           "Not Accepted",
	TalkCancelled:          "Talk Cancelled",
	TalkUnderConsideration: "Under Consideration",
	TalkSubmitted:          "Submitted",
	TalkProvisional:        "Provisionally Accepted",
	TalkWithdrawn:          "Talk Withdrawn",
}

func (s TalkStatus) Valid() bool {
	_, ok := talkStatusLabels[s]
	return ok
}

func (s TalkStatus) Label() string {
	return talkStatusLabels[s]
}

// TalkStatuses lists every status code
func TalkStatuses() []TalkStatus {
	return []TalkStatus{
		TalkSubmitted, TalkUnderConsideration, TalkProvisional,
		TalkAccepted, TalkRejected, TalkCancelled, TalkWithdrawn,
	}
}

type TalkType struct {
	ID                string `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name              string `gorm:"type:varchar(255);not null" json:"name"`
	Description       string `gorm:"type:text" json:"description"`
	Order             int    `gorm:"column:sort_order" json:"order"`
	DisableSubmission bool   `json:"disable_submission"`
}

// BeforeCreate hook to generate CUID
func (tt *TalkType) BeforeCreate(tx *gorm.DB) error {
	newID(&tt.ID)
	return nil
}

func (tt *TalkType) CSSClass() string {
	return "talk-type-" + utils.GenerateSlug(tt.Name)
}

type Track struct {
	ID          string `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Order       int    `gorm:"column:sort_order" json:"order"`
}

// BeforeCreate hook to generate CUID
func (t *Track) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	return nil
}

func (t *Track) CSSClass() string {
	return "track-" + utils.GenerateSlug(t.Name)
}

type Talk struct {
	ID                    string         `gorm:"primaryKey;type:varchar(25)" json:"id"`
	TalkTypeID            *string        `gorm:"type:varchar(25)" json:"talk_type_id"`
	TrackID               *string        `gorm:"type:varchar(25)" json:"track_id"`
	Title                 string         `gorm:"type:varchar(1024);not null" json:"title"`
	Abstract              string         `gorm:"type:text" json:"abstract"`
	AbstractHTML          string         `gorm:"column:abstract_html;type:text" json:"abstract_html"`
	Notes                 string         `gorm:"type:text" json:"notes,omitempty"`
	PrivateNotes          string         `gorm:"type:text" json:"private_notes,omitempty"`
	Status                TalkStatus     `gorm:"type:varchar(1);not null" json:"status"`
	CorrespondingAuthorID string         `gorm:"type:varchar(25);not null;index" json:"corresponding_author_id"`
	Video                 bool           `json:"video"`
	VideoReviewer         string         `gorm:"type:varchar(254)" json:"video_reviewer,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	TalkType            *TalkType  `gorm:"foreignKey:TalkTypeID" json:"talk_type,omitempty"`
	Track               *Track     `gorm:"foreignKey:TrackID" json:"track,omitempty"`
	CorrespondingAuthor User       `gorm:"foreignKey:CorrespondingAuthorID" json:"-"`
	Authors             []User     `gorm:"many2many:talk_authors;" json:"-"`
	KV                  []KeyValue `gorm:"many2many:talk_kv;" json:"-"`
	URLs                []TalkURL  `gorm:"foreignKey:TalkID" json:"-"`
	Reviews             []Review   `gorm:"foreignKey:TalkID" json:"-"`
}

// BeforeCreate hook to generate CUID
func (t *Talk) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	if t.Status == "" {
		t.Status = TalkSubmitted
	}
	return nil
}

func (t *Talk) Slug() string {
	return utils.GenerateSlug(t.Title)
}

// IsAmongAuthors checks the corresponding author and the preloaded authors
func (t *Talk) IsAmongAuthors(u *User) bool {
	if u == nil {
		return false
	}
	if t.CorrespondingAuthorID == u.ID {
		return true
	}
	for _, a := range t.Authors {
		if a.ID == u.ID {
			return true
		}
	}
	return false
}

// CanView: admins and authors always, everyone else once the talk is
// accepted or cancelled. u may be nil for anonymous visitors.
func (t *Talk) CanView(u *User) bool {
	if u.IsAdmin() || t.IsAmongAuthors(u) {
		return true
	}
	return t.Status == TalkAccepted || t.Status == TalkCancelled
}

// CanEdit: admins always, authors while the talk is still pending
func (t *Talk) CanEdit(u *User) bool {
	if u.IsAdmin() {
		return true
	}
	if t.Status == TalkSubmitted || t.Status == TalkUnderConsideration {
		return t.IsAmongAuthors(u)
	}
	return false
}

// CanReview: reviewers and admins who are not authors of the talk
func (t *Talk) CanReview(u *User) bool {
	if u == nil || (u.Role != RoleReviewer && u.Role != RoleAdmin) {
		return false
	}
	return !t.IsAmongAuthors(u)
}

// AuthorsDisplayName lists the corresponding author first. More than two
// authors collapse to "First, et al.".
func (t *Talk) AuthorsDisplayName() string {
	authors := make([]User, 0, len(t.Authors)+1)
	seen := false
	for _, a := range t.Authors {
		if a.ID == t.CorrespondingAuthorID {
			seen = true
		}
		authors = append(authors, a)
	}
	if !seen && t.CorrespondingAuthor.ID != "" {
		authors = append(authors, t.CorrespondingAuthor)
	}

	sortKey := func(u User) string {
		if u.ID == t.CorrespondingAuthorID {
			return ""
		}
		return u.DisplayName()
	}
	sort.SliceStable(authors, func(i, j int) bool {
		return sortKey(authors[i]) < sortKey(authors[j])
	})

	names := make([]string, len(authors))
	for i := range authors {
		names[i] = authors[i].DisplayName()
	}
	if len(names) <= 2 {
		return strings.Join(names, " & ")
	}
	return names[0] + ", et al."
}

// ReviewScore averages the per-review averages, nil without scored reviews.
// Reviews and their scores must be preloaded.
func (t *Talk) ReviewScore() *float64 {
	var sum float64
	var n int
	for i := range t.Reviews {
		if avg := t.Reviews[i].AvgScore(); avg != nil {
			sum += *avg
			n++
		}
	}
	if n == 0 {
		return nil
	}
	score := sum / float64(n)
	return &score
}

// TalkURL points at material for a talk (slides, video). Organiser-facing.
type TalkURL struct {
	ID          string `gorm:"primaryKey;type:varchar(25)" json:"id"`
	TalkID      string `gorm:"type:varchar(25);not null;index" json:"talk_id"`
	Description string `gorm:"type:varchar(256)" json:"description"`
	URL         string `gorm:"column:url;type:varchar(1024);not null" json:"url"`
}

// BeforeCreate hook to generate CUID
func (tu *TalkURL) BeforeCreate(tx *gorm.DB) error {
	newID(&tu.ID)
	return nil
}

type ReviewAspect struct {
	ID   string `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`
}

// BeforeCreate hook to generate CUID
func (ra *ReviewAspect) BeforeCreate(tx *gorm.DB) error {
	newID(&ra.ID)
	return nil
}

type Review struct {
	ID         string    `gorm:"primaryKey;type:varchar(25)" json:"id"`
	TalkID     string    `gorm:"type:varchar(25);not null;uniqueIndex:idx_reviews_talk_reviewer" json:"talk_id"`
	ReviewerID string    `gorm:"type:varchar(25);not null;uniqueIndex:idx_reviews_talk_reviewer" json:"reviewer_id"`
	Notes      string    `gorm:"type:text" json:"notes"`
	NotesHTML  string    `gorm:"column:notes_html;type:text" json:"notes_html"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Reviewer User    `gorm:"foreignKey:ReviewerID" json:"-"`
	Scores   []Score `gorm:"foreignKey:ReviewID" json:"scores"`
}

// BeforeCreate hook to generate CUID
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}

// AvgScore is nil when the review has no scores
func (r *Review) AvgScore() *float64 {
	if len(r.Scores) == 0 {
		return nil
	}
	var sum int
	for _, s := range r.Scores {
		sum += s.Value
	}
	avg := float64(sum) / float64(len(r.Scores))
	return &avg
}

// IsCurrent reports whether the review postdates the last talk edit
func (r *Review) IsCurrent(t *Talk) bool {
	return !r.UpdatedAt.Before(t.UpdatedAt)
}

type Score struct {
	ID       string `gorm:"primaryKey;type:varchar(25)" json:"id"`
	ReviewID string `gorm:"type:varchar(25);not null;uniqueIndex:idx_scores_review_aspect" json:"review_id"`
	AspectID string `gorm:"type:varchar(25);not null;uniqueIndex:idx_scores_review_aspect" json:"aspect_id"`
	Value    int    `json:"value"`

	Aspect ReviewAspect `gorm:"foreignKey:AspectID" json:"-"`
}

// BeforeCreate hook to generate CUID
func (s *Score) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}
