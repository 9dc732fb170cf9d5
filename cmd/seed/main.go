// Command seed fills the database with a demo moderation queue.
package main

import (
	"flag"
	"log"

	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numGroups := flag.Int("groups", 10, "Number of groups to create")
	postsPerUser := flag.Int("posts", 4, "Posts per user")
	adRatio := flag.Float64("ads", 0.15, "Share of posts flagged as ads")
	numReports := flag.Int("reports", 100, "Pending reports to file")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Skip bcrypt for seeded passwords")
	preset := flag.String("preset", "", "Apply a named plan (small, demo, stress)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	s := seed.NewSeeder(db, seed.Options{SkipBcrypt: *fast, MaxDays: 60})
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var sum seed.Summary
	if *preset != "" {
		log.Printf("Applying preset %s (ignoring size flags)", *preset)
		sum, err = s.ApplyPreset(*preset)
	} else {
		sum, err = s.Seed(seed.Plan{
			Users:        *numUsers,
			Groups:       *numGroups,
			PostsPerUser: *postsPerUser,
			AdRatio:      *adRatio,
			Reports:      *numReports,
		})
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %s", sum)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
