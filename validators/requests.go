package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"wafer-be/models"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req RegisterRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required, validation.By(func(value interface{}) error {
			return ValidateUsername(value.(string))
		})),
		validation.Field(&req.Name, validation.RuneLength(0, 255)),
		validation.Field(&req.Email, validation.Required, is.EmailFormat, validation.Length(0, 254)),
		validation.Field(&req.Password, validation.Required, validation.Length(8, 128)),
	)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req LoginRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required),
		validation.Field(&req.Password, validation.Required),
	)
}

// ProfileRequest updates the profile fields of the current user. Nil fields
// are left untouched.
type ProfileRequest struct {
	Name           *string `json:"name"`
	ContactNumber  *string `json:"contact_number"`
	Bio            *string `json:"bio"`
	Homepage       *string `json:"homepage"`
	TwitterHandle  *string `json:"twitter_handle"`
	GithubUsername *string `json:"github_username"`
}

func (req ProfileRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.RuneLength(0, 255)),
		validation.Field(&req.ContactNumber, validation.Length(0, 16)),
		validation.Field(&req.Homepage, validation.Length(0, 256), is.URL),
		validation.Field(&req.TwitterHandle, validation.By(func(value interface{}) error {
			h, _ := value.(*string)
			if h == nil || *h == "" {
				return nil
			}
			return ValidateTwitterHandle(strings.TrimPrefix(*h, "@"))
		})),
		validation.Field(&req.GithubUsername, validation.Length(0, 32)),
	)
}

type TalkRequest struct {
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Notes         string   `json:"notes"`
	PrivateNotes  string   `json:"private_notes"`
	TalkTypeID    *string  `json:"talk_type_id"`
	TrackID       *string  `json:"track_id"`
	Authors       []string `json:"authors"`
	Video         bool     `json:"video"`
	VideoReviewer string   `json:"video_reviewer"`
}

func (req TalkRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.Required, validation.RuneLength(1, 1024)),
		validation.Field(&req.Abstract, validation.Required),
		validation.Field(&req.Authors, validation.Each(validation.Required)),
		validation.Field(&req.VideoReviewer, is.EmailFormat, validation.Length(0, 254)),
	)
}

type TalkStatusRequest struct {
	Status models.TalkStatus `json:"status"`
}

func (req TalkStatusRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Status, validation.Required, validation.By(func(value interface{}) error {
			if !value.(models.TalkStatus).Valid() {
				return validation.NewError("validation_talk_status", "unknown talk status")
			}
			return nil
		})),
	)
}

// TaxonomyRequest creates a talk type or a track. DisableSubmission only
// applies to talk types.
type TaxonomyRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Order             int    `json:"order"`
	DisableSubmission bool   `json:"disable_submission"`
}

func (req TaxonomyRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 255)),
	)
}

type ReviewAspectRequest struct {
	Name string `json:"name"`
}

func (req ReviewAspectRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 255)),
	)
}

type TalkURLRequest struct {
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (req TalkURLRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Description, validation.RuneLength(0, 256)),
		validation.Field(&req.URL, validation.Required, is.URL, validation.Length(1, 1024)),
	)
}

// ReviewRequest scores a talk on each aspect, keyed by aspect ID
type ReviewRequest struct {
	Notes  string         `json:"notes"`
	Scores map[string]int `json:"scores"`
}

// Validate checks every score lies within scoreMin..scoreMax
func (req ReviewRequest) Validate(scoreMin, scoreMax int) error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Scores, validation.By(func(value interface{}) error {
			for aspect, score := range value.(map[string]int) {
				if strings.TrimSpace(aspect) == "" {
					return validation.NewError("validation_review_aspect", "aspect is required")
				}
				if score < scoreMin || score > scoreMax {
					return validation.NewError("validation_review_score", fmt.Sprintf("scores must be between %d and %d", scoreMin, scoreMax))
				}
			}
			return nil
		})),
	)
}

type KeyValueRequest struct {
	Group string          `json:"group"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (req KeyValueRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Group, validation.Required),
		validation.Field(&req.Key, validation.Required, validation.RuneLength(1, models.KeyNameMaxLen)),
		validation.Field(&req.Value, validation.By(func(value interface{}) error {
			raw := value.(json.RawMessage)
			if len(raw) == 0 || !json.Valid(raw) {
				return validation.NewError("validation_kv_value", "value must be valid JSON")
			}
			return nil
		})),
	)
}

type TicketClaimRequest struct {
	Barcode int64 `json:"barcode"`
}

func (req TicketClaimRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Barcode, validation.Required, validation.Min(int64(1))),
	)
}

// QuicketTicket is one entry of a Quicket purchase webhook
type QuicketTicket struct {
	ID            int64   `json:"id"`
	AttendeeName  string  `json:"attendee_name"`
	AttendeeEmail string  `json:"attendee_email"`
	TicketType    string  `json:"ticket_type"`
	Price         float64 `json:"price"`
	Barcode       int64   `json:"barcode"`
}

func (t QuicketTicket) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Barcode, validation.Required),
		validation.Field(&t.TicketType, validation.Required, validation.RuneLength(1, 32)),
	)
}

// QuicketPayload is posted by Quicket when tickets are bought
type QuicketPayload struct {
	Reference string          `json:"reference"`
	EventID   int64           `json:"event_id"`
	EventName string          `json:"event_name"`
	Email     string          `json:"email"`
	Action    string          `json:"action"`
	Tickets   []QuicketTicket `json:"tickets"`
}

func (p QuicketPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Tickets),
	)
}

type SponsorRequest struct {
	Name        string   `json:"name"`
	Order       int      `json:"order"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Packages    []string `json:"packages"`
}

func (req SponsorRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&req.URL, is.URL, validation.Length(0, 1024)),
		validation.Field(&req.Packages, validation.Each(validation.Required)),
	)
}

type PackageRequest struct {
	Name             string  `json:"name"`
	Order            int     `json:"order"`
	NumberAvailable  *int    `json:"number_available"`
	Currency         string  `json:"currency"`
	Price            float64 `json:"price"`
	ShortDescription string  `json:"short_description"`
	Description      string  `json:"description"`
	Symbol           string  `json:"symbol"`
}

func (req PackageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&req.NumberAvailable, validation.Min(0)),
		validation.Field(&req.Currency, validation.RuneLength(0, 16)),
		validation.Field(&req.Price, validation.Min(0.0)),
		validation.Field(&req.Symbol, validation.RuneLength(0, 1)),
	)
}

type PageRequest struct {
	Name    string   `json:"name"`
	Content string   `json:"content"`
	People  []string `json:"people"`
	Files   []string `json:"files"`
}

func (req PageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&req.People, validation.Each(validation.Required)),
		validation.Field(&req.Files, validation.Each(validation.Required)),
	)
}

// ReorderRequest lists IDs in their new display order
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

func (req ReorderRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.IDs, validation.Required, validation.Each(validation.Required)),
	)
}

type GroupRequest struct {
	Name string `json:"name"`
}

func (req GroupRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 150)),
	)
}

type GroupMemberRequest struct {
	UserID string `json:"user_id"`
}

func (req GroupMemberRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.UserID, validation.Required),
	)
}

// Fields flattens ozzo errors into the field map of a VALIDATION_ERROR
// response. Errors that are not per-field land under "_".
func Fields(err error) map[string]string {
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for name, fieldErr := range errs {
			fields[name] = fieldErr.Error()
		}
		return fields
	}
	fields["_"] = err.Error()
	return fields
}
