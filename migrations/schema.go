package migrations

import (
	"time"

	"gorm.io/gorm"
)

// The structs below are frozen snapshots of the tables at the step that
// introduces them. They must not follow later changes to package models;
// new columns get a new step.

type userV1 struct {
	ID        string `gorm:"primaryKey;type:varchar(25)"`
	Username  string `gorm:"uniqueIndex;type:varchar(150);not null"`
	Name      string `gorm:"type:varchar(255)"`
	Email     string `gorm:"uniqueIndex;type:varchar(254);not null"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"type:varchar(20)"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (userV1) TableName() string { return "users" }

type groupV1 struct {
	ID        string `gorm:"primaryKey;type:varchar(25)"`
	Name      string `gorm:"uniqueIndex;type:varchar(150);not null"`
	CreatedAt time.Time
}

func (groupV1) TableName() string { return "groups" }

type userGroupV1 struct {
	UserID  string `gorm:"primaryKey;type:varchar(25)"`
	GroupID string `gorm:"primaryKey;type:varchar(25)"`
}

func (userGroupV1) TableName() string { return "user_groups" }

type userProfileV2 struct {
	ContactNumber  string `gorm:"type:varchar(16)"`
	Bio            string `gorm:"type:text"`
	Homepage       string `gorm:"type:varchar(256)"`
	TwitterHandle  string `gorm:"type:varchar(15)"`
	GithubUsername string `gorm:"type:varchar(32)"`
}

func (userProfileV2) TableName() string { return "users" }

var userProfileColumnsV2 = []string{"ContactNumber", "Bio", "Homepage", "TwitterHandle", "GithubUsername"}

type userKVV3 struct {
	UserID     string `gorm:"primaryKey;type:varchar(25)"`
	KeyValueID string `gorm:"primaryKey;type:varchar(25)"`
}

func (userKVV3) TableName() string { return "user_kv" }

type keyValueV1 struct {
	ID        string `gorm:"primaryKey;type:varchar(25)"`
	GroupID   string `gorm:"type:varchar(25);not null;index"`
	Key       string `gorm:"type:varchar(64);not null;index"`
	Value     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (keyValueV1) TableName() string { return "key_values" }

type talkV1 struct {
	ID                    string `gorm:"primaryKey;type:varchar(25)"`
	Title                 string `gorm:"type:varchar(1024);not null"`
	Abstract              string `gorm:"type:text"`
	AbstractHTML          string `gorm:"column:abstract_html;type:text"`
	Notes                 string `gorm:"type:text"`
	Status                string `gorm:"type:varchar(1);not null"`
	CorrespondingAuthorID string `gorm:"type:varchar(25);not null;index"`
	Video                 bool
	VideoReviewer         string `gorm:"type:varchar(254)"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
	DeletedAt             gorm.DeletedAt `gorm:"index"`
}

func (talkV1) TableName() string { return "talks" }

type talkAuthorV1 struct {
	TalkID string `gorm:"primaryKey;type:varchar(25)"`
	UserID string `gorm:"primaryKey;type:varchar(25)"`
}

func (talkAuthorV1) TableName() string { return "talk_authors" }

type talkURLV1 struct {
	ID          string `gorm:"primaryKey;type:varchar(25)"`
	TalkID      string `gorm:"type:varchar(25);not null;index"`
	Description string `gorm:"type:varchar(256)"`
	URL         string `gorm:"column:url;type:varchar(1024);not null"`
}

func (talkURLV1) TableName() string { return "talk_urls" }

type talkPrivateNotesV3 struct {
	PrivateNotes string `gorm:"type:text"`
}

func (talkPrivateNotesV3) TableName() string { return "talks" }

type talkKVV5 struct {
	TalkID     string `gorm:"primaryKey;type:varchar(25)"`
	KeyValueID string `gorm:"primaryKey;type:varchar(25)"`
}

func (talkKVV5) TableName() string { return "talk_kv" }

type talkTypeV8 struct {
	ID                string `gorm:"primaryKey;type:varchar(25)"`
	Name              string `gorm:"type:varchar(255);not null"`
	Description       string `gorm:"type:text"`
	Order             int    `gorm:"column:sort_order"`
	DisableSubmission bool
}

func (talkTypeV8) TableName() string { return "talk_types" }

type talkTalkTypeV8 struct {
	TalkTypeID *string `gorm:"type:varchar(25)"`
}

func (talkTalkTypeV8) TableName() string { return "talks" }

type reviewAspectV10 struct {
	ID   string `gorm:"primaryKey;type:varchar(25)"`
	Name string `gorm:"type:varchar(255);not null"`
}

func (reviewAspectV10) TableName() string { return "review_aspects" }

type reviewV10 struct {
	ID         string `gorm:"primaryKey;type:varchar(25)"`
	TalkID     string `gorm:"type:varchar(25);not null;uniqueIndex:idx_reviews_talk_reviewer"`
	ReviewerID string `gorm:"type:varchar(25);not null;uniqueIndex:idx_reviews_talk_reviewer"`
	Notes      string `gorm:"type:text"`
	NotesHTML  string `gorm:"column:notes_html;type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (reviewV10) TableName() string { return "reviews" }

type scoreV10 struct {
	ID       string `gorm:"primaryKey;type:varchar(25)"`
	ReviewID string `gorm:"type:varchar(25);not null;uniqueIndex:idx_scores_review_aspect"`
	AspectID string `gorm:"type:varchar(25);not null;uniqueIndex:idx_scores_review_aspect"`
	Value    int
}

func (scoreV10) TableName() string { return "scores" }

type trackV12 struct {
	ID          string `gorm:"primaryKey;type:varchar(25)"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	Order       int    `gorm:"column:sort_order"`
}

func (trackV12) TableName() string { return "tracks" }

type talkTrackV12 struct {
	TrackID *string `gorm:"type:varchar(25)"`
}

func (talkTrackV12) TableName() string { return "talks" }

type sponsorshipPackageV1 struct {
	ID               string `gorm:"primaryKey;type:varchar(25)"`
	Order            int    `gorm:"column:sort_order"`
	Name             string `gorm:"type:varchar(255);not null"`
	NumberAvailable  *int
	Currency         string  `gorm:"type:varchar(16);not null"`
	Price            float64 `gorm:"type:decimal(12,2);not null"`
	ShortDescription string  `gorm:"type:text"`
	Description      string  `gorm:"type:text"`
	DescriptionHTML  string  `gorm:"column:description_html;type:text"`
}

func (sponsorshipPackageV1) TableName() string { return "sponsorship_packages" }

type sponsorV1 struct {
	ID              string `gorm:"primaryKey;type:varchar(25)"`
	Order           int    `gorm:"column:sort_order"`
	Name            string `gorm:"type:varchar(255);not null"`
	Description     string `gorm:"type:text"`
	DescriptionHTML string `gorm:"column:description_html;type:text"`
	URL             string `gorm:"column:url;type:varchar(1024)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (sponsorV1) TableName() string { return "sponsors" }

type sponsorPackageV1 struct {
	SponsorID            string `gorm:"primaryKey;type:varchar(25)"`
	SponsorshipPackageID string `gorm:"primaryKey;type:varchar(25)"`
}

func (sponsorPackageV1) TableName() string { return "sponsor_packages" }

type sponsorFileV1 struct {
	ID          string `gorm:"primaryKey;type:varchar(25)"`
	SponsorID   string `gorm:"type:varchar(25);not null;index"`
	Tag         string `gorm:"type:varchar(255);not null"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	URL         string `gorm:"column:url;type:varchar(1024);not null"`
	CreatedAt   time.Time
}

func (sponsorFileV1) TableName() string { return "sponsor_files" }

type packageSymbolV5 struct {
	Symbol string `gorm:"type:varchar(1)"`
}

func (packageSymbolV5) TableName() string { return "sponsorship_packages" }

type ticketTypeV1 struct {
	ID   string `gorm:"primaryKey;type:varchar(25)"`
	Name string `gorm:"uniqueIndex;type:varchar(32);not null"`
}

func (ticketTypeV1) TableName() string { return "ticket_types" }

type ticketV1 struct {
	Barcode   int64   `gorm:"primaryKey;autoIncrement:false"`
	TypeID    string  `gorm:"type:varchar(25);not null;index"`
	UserID    *string `gorm:"type:varchar(25);index"`
	CreatedAt time.Time
}

func (ticketV1) TableName() string { return "tickets" }

type ticketEmailV2 struct {
	Email string `gorm:"type:varchar(255)"`
}

func (ticketEmailV2) TableName() string { return "tickets" }

type pageV1 struct {
	ID          string `gorm:"primaryKey;type:varchar(25)"`
	Name        string `gorm:"type:varchar(255);not null"`
	Content     string `gorm:"type:text"`
	ContentHTML string `gorm:"column:content_html;type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (pageV1) TableName() string { return "pages" }

type pageFileV1 struct {
	ID          string `gorm:"primaryKey;type:varchar(25)"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	URL         string `gorm:"column:url;type:varchar(1024);not null"`
	CreatedAt   time.Time
}

func (pageFileV1) TableName() string { return "page_files" }

type pageFileLinkV1 struct {
	PageID     string `gorm:"primaryKey;type:varchar(25)"`
	PageFileID string `gorm:"primaryKey;type:varchar(25)"`
}

func (pageFileLinkV1) TableName() string { return "page_file_links" }

type pagePeopleV2 struct {
	PageID string `gorm:"primaryKey;type:varchar(25)"`
	UserID string `gorm:"primaryKey;type:varchar(25)"`
}

func (pagePeopleV2) TableName() string { return "page_people" }

func createTables(models ...interface{}) ApplyFunc {
	return func(tx *gorm.DB) error {
		return tx.Migrator().CreateTable(models...)
	}
}

// dropTables drops in reverse so join tables go before what they join
func dropTables(models ...interface{}) ApplyFunc {
	return func(tx *gorm.DB) error {
		for i := len(models) - 1; i >= 0; i-- {
			if err := tx.Migrator().DropTable(models[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func addColumns(model interface{}, fields ...string) ApplyFunc {
	return func(tx *gorm.DB) error {
		for _, f := range fields {
			if err := tx.Migrator().AddColumn(model, f); err != nil {
				return err
			}
		}
		return nil
	}
}

func dropColumns(model interface{}, fields ...string) ApplyFunc {
	return func(tx *gorm.DB) error {
		for i := len(fields) - 1; i >= 0; i-- {
			if err := tx.Migrator().DropColumn(model, fields[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(steps ...ApplyFunc) ApplyFunc {
	return func(tx *gorm.DB) error {
		for _, step := range steps {
			if err := step(tx); err != nil {
				return err
			}
		}
		return nil
	}
}

func dep(app, name string) Key {
	return Key{App: app, Name: name}
}

// Schema returns the application's migrations
func Schema() []Migration {
	return []Migration{
		{
			App:    "users",
			Name:   "0001_initial",
			Apply:  createTables(&userV1{}, &groupV1{}, &userGroupV1{}),
			Revert: dropTables(&userV1{}, &groupV1{}, &userGroupV1{}),
		},
		{
			App:          "users",
			Name:         "0002_userprofile",
			Dependencies: []Key{dep("users", "0001_initial")},
			Apply:        addColumns(&userProfileV2{}, userProfileColumnsV2...),
			Revert:       dropColumns(&userProfileV2{}, userProfileColumnsV2...),
		},
		{
			App:          "users",
			Name:         "0003_userprofile_kv",
			Dependencies: []Key{dep("users", "0002_userprofile"), dep("kv", "0001_initial")},
			Apply:        createTables(&userKVV3{}),
			Revert:       dropTables(&userKVV3{}),
		},
		{
			App:          "kv",
			Name:         "0001_initial",
			Dependencies: []Key{dep("users", "0001_initial")},
			Apply:        createTables(&keyValueV1{}),
			Revert:       dropTables(&keyValueV1{}),
		},
		{
			App:          "talks",
			Name:         "0001_initial",
			Dependencies: []Key{dep("users", "0001_initial")},
			Apply:        createTables(&talkV1{}, &talkAuthorV1{}, &talkURLV1{}),
			Revert:       dropTables(&talkV1{}, &talkAuthorV1{}, &talkURLV1{}),
		},
		{
			App:          "talks",
			Name:         "0003_talk_private_notes",
			Dependencies: []Key{dep("talks", "0001_initial")},
			Apply:        addColumns(&talkPrivateNotesV3{}, "PrivateNotes"),
			Revert:       dropColumns(&talkPrivateNotesV3{}, "PrivateNotes"),
		},
		{
			App:          "talks",
			Name:         "0005_add_kv",
			Dependencies: []Key{dep("talks", "0003_talk_private_notes"), dep("kv", "0001_initial")},
			Apply:        createTables(&talkKVV5{}),
			Revert:       dropTables(&talkKVV5{}),
		},
		{
			App:          "talks",
			Name:         "0008_talk_types",
			Dependencies: []Key{dep("talks", "0005_add_kv")},
			Apply:        chain(createTables(&talkTypeV8{}), addColumns(&talkTalkTypeV8{}, "TalkTypeID")),
			Revert:       chain(dropColumns(&talkTalkTypeV8{}, "TalkTypeID"), dropTables(&talkTypeV8{})),
		},
		{
			App:          "talks",
			Name:         "0010_reviews",
			Dependencies: []Key{dep("talks", "0008_talk_types")},
			Apply:        createTables(&reviewAspectV10{}, &reviewV10{}, &scoreV10{}),
			Revert:       dropTables(&reviewAspectV10{}, &reviewV10{}, &scoreV10{}),
		},
		{
			App:          "talks",
			Name:         "0012_add_tracks",
			Dependencies: []Key{dep("talks", "0010_reviews")},
			Apply:        chain(createTables(&trackV12{}), addColumns(&talkTrackV12{}, "TrackID")),
			Revert:       chain(dropColumns(&talkTrackV12{}, "TrackID"), dropTables(&trackV12{})),
		},
		{
			App:    "sponsors",
			Name:   "0001_initial",
			Apply:  createTables(&sponsorshipPackageV1{}, &sponsorV1{}, &sponsorPackageV1{}, &sponsorFileV1{}),
			Revert: dropTables(&sponsorshipPackageV1{}, &sponsorV1{}, &sponsorPackageV1{}, &sponsorFileV1{}),
		},
		{
			App:          "sponsors",
			Name:         "0005_sponsorshippackage_symbol",
			Dependencies: []Key{dep("sponsors", "0001_initial")},
			Apply:        addColumns(&packageSymbolV5{}, "Symbol"),
			Revert:       dropColumns(&packageSymbolV5{}, "Symbol"),
		},
		{
			App:          "tickets",
			Name:         "0001_initial",
			Dependencies: []Key{dep("users", "0001_initial")},
			Apply:        createTables(&ticketTypeV1{}, &ticketV1{}),
			Revert:       dropTables(&ticketTypeV1{}, &ticketV1{}),
		},
		{
			App:          "tickets",
			Name:         "0002_ticket_email",
			Dependencies: []Key{dep("tickets", "0001_initial")},
			Apply:        addColumns(&ticketEmailV2{}, "Email"),
			Revert:       dropColumns(&ticketEmailV2{}, "Email"),
		},
		{
			App:    "pages",
			Name:   "0001_initial",
			Apply:  createTables(&pageV1{}, &pageFileV1{}, &pageFileLinkV1{}),
			Revert: dropTables(&pageV1{}, &pageFileV1{}, &pageFileLinkV1{}),
		},
		{
			App:          "pages",
			Name:         "0002_page_people",
			Dependencies: []Key{dep("pages", "0001_initial"), dep("users", "0001_initial")},
			Apply:        createTables(&pagePeopleV2{}),
			Revert:       dropTables(&pagePeopleV2{}),
		},
	}
}

// NewSchemaGraph registers Schema in a fresh graph
func NewSchemaGraph() (*Graph, error) {
	g := NewGraph()
	if err := g.Add(Schema()...); err != nil {
		return nil, err
	}
	if _, err := g.Order(); err != nil {
		return nil, err
	}
	return g, nil
}
