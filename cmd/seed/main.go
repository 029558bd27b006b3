// Command seed fills the database with demo clubs, threads and posts.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"bookclub/internal/config"
	"bookclub/internal/database"
	"bookclub/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	postsPerUser := flag.Int("posts", 3, "Feed posts per user")
	replies := flag.Int("replies", 5, "Replies per thread")
	extraGroups := flag.Int("extra-groups", 4, "Generated clubs on top of the starter fixture")
	fixture := flag.String("fixture", "", "YAML file of starter groups (defaults to the built-in set)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
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

	opts := seed.Options{
		NumUsers:         *numUsers,
		PostsPerUser:     *postsPerUser,
		RepliesPerThread: *replies,
		ExtraGroups:      *extraGroups,
		ShouldClean:      *shouldClean,
	}
	if *fixture != "" {
		f, err := os.Open(*fixture)
		if err != nil {
			log.Fatalf("Failed to open fixture: %v", err)
		}
		opts.Groups, err = seed.LoadStarterGroups(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Invalid fixture: %v", err)
		}
	}

	sum, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d groups, %d threads, %d replies, %d likes, %d posts",
		sum.Users, sum.Groups, sum.Threads, sum.Replies, sum.Likes, sum.Posts)
	log.Printf("All seeded users have the password: %s (first login: reader@example.com)", seed.DemoPassword)
}
