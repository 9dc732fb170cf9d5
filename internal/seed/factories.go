// Package seed provides helpers to create demo data for the moderation
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"warden/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "password123"

// Options tunes how the factory builds rows.
type Options struct {
	// DryRun assigns synthetic IDs instead of writing.
	DryRun bool
	// SkipBcrypt stores DefaultPassword unhashed to speed up large seeds.
	SkipBcrypt bool
	// MaxDays bounds how far back created_at is spread.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   Options
	rng    *rand.Rand
	nextID uint
	hash   string
}

// NewFactory creates a Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		nextID: 1000,
	}
}

func (f *Factory) password() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("bcrypt failed, storing plain seed password: %v", err)
			return DefaultPassword
		}
		f.hash = string(hashed)
	}
	return f.hash
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().UTC().Add(-back)
}

func (f *Factory) persist(value any, id *uint) error {
	if f.opts.DryRun {
		f.nextID++
		*id = f.nextID
		return nil
	}
	return f.db.Create(value).Error
}

// CreateUser persists a sample user. Overrides run before the insert.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), gofakeit.Number(100, 99999))
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: f.password(),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.persist(user, &user.ID); err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return user, nil
}

// CreateGroup persists a group owned by owner together with the owner's membership.
func (f *Factory) CreateGroup(owner *models.User, overrides ...func(*models.Group)) (*models.Group, error) {
	name := gofakeit.Hobby() + " " + gofakeit.NounCollectivePeople()
	group := &models.Group{
		Name:        name,
		Slug:        fmt.Sprintf("%s-%d", slugify(name), gofakeit.Number(1000, 999999)),
		Description: gofakeit.Sentence(12),
		OwnerID:     owner.ID,
		Status:      models.ModerationStatusActive,
		Severity:    models.SeverityNone,
		Version:     1,
		CreatedAt:   f.createdAt(),
	}
	for _, override := range overrides {
		override(group)
	}
	if err := f.persist(group, &group.ID); err != nil {
		return nil, fmt.Errorf("create group %s: %w", group.Slug, err)
	}
	if err := f.AddMember(group, owner, models.GroupMembershipRoleOwner); err != nil {
		return nil, err
	}
	return group, nil
}

// AddMember records a membership row. It is a no-op in DryRun mode.
func (f *Factory) AddMember(group *models.Group, user *models.User, role models.GroupMembershipRole) error {
	if f.opts.DryRun {
		return nil
	}
	m := &models.GroupMembership{GroupID: group.ID, UserID: user.ID, Role: role}
	if err := f.db.Create(m).Error; err != nil {
		return fmt.Errorf("add member %d to group %d: %w", user.ID, group.ID, err)
	}
	return nil
}

// BuildPost constructs a post without persisting it. group may be nil.
func (f *Factory) BuildPost(author *models.User, group *models.Group, isAd bool) *models.Post {
	post := &models.Post{
		Title:     gofakeit.Sentence(5),
		Content:   gofakeit.Paragraph(1, 3, 8, "\n"),
		AuthorID:  author.ID,
		IsAd:      isAd,
		Status:    models.ModerationStatusActive,
		Severity:  models.SeverityNone,
		Version:   1,
		CreatedAt: f.createdAt(),
	}
	if group != nil {
		id := group.ID
		post.GroupID = &id
	}
	if isAd {
		post.Title = fmt.Sprintf("%s: %s", gofakeit.Company(), gofakeit.BuzzWord())
		post.Content = fmt.Sprintf("%s\n\n%s", gofakeit.HackerPhrase(), gofakeit.URL())
	}
	return post
}

// CreatePost persists a post built by BuildPost.
func (f *Factory) CreatePost(author *models.User, group *models.Group, isAd bool, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, group, isAd)
	for _, override := range overrides {
		override(post)
	}
	if err := f.persist(post, &post.ID); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// RandomViolation picks a report type from the accepted violation types.
func (f *Factory) RandomViolation() models.ViolationType {
	return models.ViolationTypes[f.rng.Intn(len(models.ViolationTypes))]
}

// CreateReport files a pending report by reporter against the subject.
func (f *Factory) CreateReport(kind models.SubjectKind, subjectID uint, reporter *models.User, overrides ...func(*models.Report)) (*models.Report, error) {
	report := &models.Report{
		SubjectKind: kind,
		SubjectID:   subjectID,
		ReporterID:  reporter.ID,
		ReportType:  string(f.RandomViolation()),
		Reason:      gofakeit.Sentence(8),
		Status:      models.ReportStatusPending,
		ActionTaken: models.ReportActionNone,
		CreatedAt:   f.createdAt(),
	}
	for _, override := range overrides {
		override(report)
	}
	if err := f.persist(report, &report.ID); err != nil {
		return nil, fmt.Errorf("create report on %s %d: %w", kind, subjectID, err)
	}
	return report, nil
}

func slugify(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	slug := strings.Join(fields, "-")
	if len(slug) > 32 {
		slug = strings.TrimRight(slug[:32], "-")
	}
	return slug
}
