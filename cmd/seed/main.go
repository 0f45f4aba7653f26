package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/learnup/learnup/internal/client"
	"github.com/learnup/learnup/internal/model"
)

var people = []struct {
	name  string
	email string
	role  string
}{
	{"Ada Lovelace", "ada@learnup.dev", "instructor"},
	{"Grace Hopper", "grace@learnup.dev", "instructor"},
	{"Alan Turing", "alan@learnup.dev", "student"},
	{"Edsger Dijkstra", "edsger@learnup.dev", "student"},
	{"Barbara Liskov", "barbara@learnup.dev", "student"},
}

var entities = []model.EntityRef{
	{Scope: model.ScopeVideo, ID: "intro-to-go"},
	{Scope: model.ScopeVideo, ID: "goroutines-101"},
	{Scope: model.ScopeSubject, ID: "concurrency"},
	{Scope: model.ScopePost, ID: "welcome"},
}

var remarks = []string{
	"Great explanation, the diagrams helped a lot.",
	"Could you go over the second example again?",
	"I got a deadlock when I tried this at home.",
	"Is there a reading list for this lesson?",
	"The exercise at the end was tricky but fun.",
	"Thanks! This finally clicked for me.",
	"What is the difference between this and a mutex?",
	"I think there is a typo at 04:12.",
}

var answers = []string{
	"Good question, I will cover it next week.",
	"Try closing the channel once the producer is done.",
	"Same here, restarting fixed it for me.",
	"Check the pinned post for links.",
	"Fixed, thanks for pointing it out!",
}

const password = "learnup-demo"

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "LearnUp server URL")
	flag.Parse()

	ctx := context.Background()
	log.Printf("Seeding comments at %s...\n", *baseURL)

	var clients []*client.Client
	for _, p := range people {
		c, err := signIn(ctx, *baseURL, p.name, p.email, p.role)
		if err != nil {
			log.Fatalf("sign in %s: %v", p.email, err)
		}
		log.Printf("✓ Signed in %s (%s)", p.name, p.role)
		clients = append(clients, c)
	}

	posted := 0
	for _, ref := range entities {
		for i := 0; i < rand.Intn(3)+2; i++ {
			who := rand.Intn(len(clients))
			root, err := clients[who].CreateComment(ctx, ref, model.Draft{Content: remarks[rand.Intn(len(remarks))]})
			if err != nil {
				log.Printf("✗ Failed to comment on %s: %v", ref, err)
				continue
			}
			posted++
			log.Printf("✓ Comment %s on %s (by %s)", root.ID, ref, people[who].name)

			parent := root.ID
			for depth := 0; depth < 3 && rand.Float32() < 0.6; depth++ {
				replier := rand.Intn(len(clients))
				reply, err := clients[replier].ReplyComment(ctx, ref, parent, model.Draft{Content: answers[rand.Intn(len(answers))]})
				if err != nil {
					log.Printf("✗ Failed to reply: %v", err)
					break
				}
				posted++
				log.Printf("  ↳ Reply %s (by %s)", reply.ID, people[replier].name)
				parent = reply.ID
			}

			time.Sleep(20 * time.Millisecond)
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Users:    %d\n", len(people))
	fmt.Printf("Comments: %d\n", posted)
	fmt.Printf("Password: %s\n", password)
	fmt.Println("\nTry: learnup comments --scope video --entity intro-to-go")
}

// signIn registers the user unless they already exist and returns a client
// carrying their token.
func signIn(ctx context.Context, baseURL, name, email, role string) (*client.Client, error) {
	anon := client.New(baseURL)
	_, err := anon.Register(ctx, client.Registration{Name: name, Email: email, Password: password, Role: role})
	if err != nil && !client.IsStatus(err, http.StatusConflict) {
		return nil, err
	}
	s, err := anon.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return client.New(baseURL, client.WithTokenSource(client.StaticToken(s.Token))), nil
}
