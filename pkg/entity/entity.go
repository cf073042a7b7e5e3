// Package entity defines the canonical shapes of Classhub domain objects.
// These are the only shapes UI-facing code sees; backend-specific wire
// shapes are translated to and from them by the normalize package.
package entity

import "time"

// Kind names a canonical entity collection.
type Kind string

const (
	KindStudent      Kind = "students"
	KindAnnouncement Kind = "announcements"
	KindDocument     Kind = "documents"
)

// Kinds lists every canonical entity kind.
func Kinds() []Kind {
	return []Kind{KindStudent, KindAnnouncement, KindDocument}
}

// Status is the lifecycle state shared by students and announcements.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// Category classifies documents and announcement attachments.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryAcademic   Category = "academic"
	CategoryAdmissions Category = "admissions"
	CategoryEvents     Category = "events"
)

// Student is the canonical student-directory record.
type Student struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Grade     string    `json:"grade"`
	Status    Status    `json:"status"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Announcement is the canonical announcement record.
type Announcement struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Category    Category     `json:"category"`
	Published   bool         `json:"published"`
	AuthorID    string       `json:"authorId,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Document is the canonical document-library record.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  Category  `json:"category"`
	FileURL   string    `json:"fileUrl"`
	FileSize  int64     `json:"fileSize"`
	FileType  string    `json:"fileType"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Attachment describes one uploaded file linked to an entity.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Role identifies the caller for role-gated reads. Enforcement lives in
// the backends; client code only carries the role along.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)
