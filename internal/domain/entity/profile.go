package entity

import "time"

const (
	RoleFreelancer = "freelancer"
	RoleRecruiter  = "recruiter"
)

// Profile is the public summary of a marketplace user, as shown in contact lists.
type Profile struct {
	ID          string    `json:"id" firestore:"id"`
	DisplayName string    `json:"display_name" firestore:"displayName"`
	AvatarURL   string    `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`
	Headline    string    `json:"headline,omitempty" firestore:"headline,omitempty"`
	Role        string    `json:"role" firestore:"role"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}
