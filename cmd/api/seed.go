package main

import (
	"log"
	"time"

	"jobhub/internal/adapter/repository"
	"jobhub/internal/domain/entity"
)

// seedDevelopmentData gives the in-memory backend a few users and an
// existing thread so the API is usable without an external store.
func seedDevelopmentData(messageLog *repository.MemoryMessageLog, profiles *repository.MemoryProfileDirectory) {
	now := time.Now().UTC()

	profiles.Put(&entity.Profile{ID: "u1", DisplayName: "Ana Freelancer", Headline: "Go backend developer", Role: entity.RoleFreelancer, UpdatedAt: now})
	profiles.Put(&entity.Profile{ID: "u2", DisplayName: "Ben Recruiter", Headline: "Hiring for platform roles", Role: entity.RoleRecruiter, UpdatedAt: now})
	profiles.Put(&entity.Profile{ID: "u3", DisplayName: "Chen Recruiter", Headline: "Talent partner", Role: entity.RoleRecruiter, UpdatedAt: now})

	messageLog.Seed(
		&entity.Message{ID: "seed-1", Content: "Hi Ana, are you open to a contract role?", SenderID: "u2", ReceiverID: "u1", CreatedAt: now.Add(-2 * time.Hour)},
		&entity.Message{ID: "seed-2", Content: "Yes, happy to chat.", SenderID: "u1", ReceiverID: "u2", CreatedAt: now.Add(-time.Hour), Read: true},
	)

	log.Printf("Seeded development data: users u1, u2, u3")
}
