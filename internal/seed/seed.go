package seed

import (
	"fmt"
	"log"
	"strings"

	"warden/internal/database"
	"warden/internal/models"

	"gorm.io/gorm"
)

// Plan sizes a demo dataset.
type Plan struct {
	Users        int
	Groups       int
	PostsPerUser int
	// AdRatio is the share of posts flagged as ads, 0..1.
	AdRatio float64
	// Reports is how many pending reports to file across groups and posts.
	Reports int
}

// Presets are named plans for cmd/seed.
var Presets = map[string]Plan{
	"small":  {Users: 10, Groups: 3, PostsPerUser: 2, AdRatio: 0.2, Reports: 15},
	"demo":   {Users: 50, Groups: 12, PostsPerUser: 4, AdRatio: 0.15, Reports: 120},
	"stress": {Users: 500, Groups: 80, PostsPerUser: 6, AdRatio: 0.1, Reports: 2500},
}

// Summary counts what a seed run created.
type Summary struct {
	Users   int
	Groups  int
	Posts   int
	Ads     int
	Reports int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d groups=%d posts=%d ads=%d reports=%d", s.Users, s.Groups, s.Posts, s.Ads, s.Reports)
}

// Seeder fills a database with a moderation queue to triage.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder returns a Seeder writing through db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying factory for ad-hoc rows.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ApplyPreset runs the named plan.
func (s *Seeder) ApplyPreset(name string) (Summary, error) {
	plan, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Summary{}, fmt.Errorf("unknown preset %q", name)
	}
	return s.Seed(plan)
}

// ClearAll empties every moderation table, children first.
func (s *Seeder) ClearAll() error {
	persistent := database.PersistentModels()
	if s.db.Dialector.Name() == "postgres" {
		tables := make([]string, 0, len(persistent))
		stmt := &gorm.Statement{DB: s.db}
		for _, m := range persistent {
			if err := stmt.Parse(m); err != nil {
				return fmt.Errorf("parse model: %w", err)
			}
			tables = append(tables, stmt.Schema.Table)
		}
		return s.db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}

	for i := len(persistent) - 1; i >= 0; i-- {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(persistent[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", persistent[i], err)
		}
	}
	return nil
}

// Seed creates users, groups with members, posts and ads, then files
// pending reports. Reporters never report their own content and never
// file two reports on the same subject.
func (s *Seeder) Seed(plan Plan) (Summary, error) {
	var sum Summary
	if plan.Users < 2 {
		return sum, fmt.Errorf("need at least 2 users, got %d", plan.Users)
	}
	f := s.factory

	users := make([]*models.User, 0, plan.Users)
	for i := 0; i < plan.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return sum, err
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	groups := make([]*models.Group, 0, plan.Groups)
	for i := 0; i < plan.Groups; i++ {
		owner := users[f.rng.Intn(len(users))]
		g, err := f.CreateGroup(owner)
		if err != nil {
			return sum, err
		}
		for _, u := range users {
			if u.ID != owner.ID && f.rng.Float64() < 0.3 {
				if err := f.AddMember(g, u, models.GroupMembershipRoleMember); err != nil {
					return sum, err
				}
			}
		}
		groups = append(groups, g)
	}
	sum.Groups = len(groups)

	var posts []*models.Post
	for _, u := range users {
		for i := 0; i < plan.PostsPerUser; i++ {
			var g *models.Group
			if len(groups) > 0 && f.rng.Float64() < 0.6 {
				g = groups[f.rng.Intn(len(groups))]
			}
			isAd := f.rng.Float64() < plan.AdRatio
			p, err := f.CreatePost(u, g, isAd)
			if err != nil {
				return sum, err
			}
			posts = append(posts, p)
			if isAd {
				sum.Ads++
			}
		}
	}
	sum.Posts = len(posts)

	type subjectKey struct {
		kind     models.SubjectKind
		id       uint
		reporter uint
	}
	filed := make(map[subjectKey]bool, plan.Reports)
	attempts := 0
	for sum.Reports < plan.Reports && attempts < plan.Reports*5 {
		attempts++
		kind, id, owner := s.pickSubject(groups, posts)
		if id == 0 {
			break
		}
		reporter := users[f.rng.Intn(len(users))]
		key := subjectKey{kind, id, reporter.ID}
		if reporter.ID == owner || filed[key] {
			continue
		}
		if _, err := f.CreateReport(kind, id, reporter); err != nil {
			return sum, err
		}
		filed[key] = true
		sum.Reports++
	}

	log.Printf("seeded %s", sum)
	return sum, nil
}

func (s *Seeder) pickSubject(groups []*models.Group, posts []*models.Post) (models.SubjectKind, uint, uint) {
	f := s.factory
	switch {
	case len(groups) > 0 && (len(posts) == 0 || f.rng.Intn(3) == 0):
		g := groups[f.rng.Intn(len(groups))]
		return models.SubjectGroup, g.ID, g.OwnerID
	case len(posts) > 0:
		p := posts[f.rng.Intn(len(posts))]
		return models.SubjectPost, p.ID, p.AuthorID
	}
	return "", 0, 0
}
