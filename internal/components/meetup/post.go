// Package meetup owns posts (meetups) and their participant sets. The
// Tracker applies join and leave as one atomic step per post so the
// participant count never exceeds the post's capacity.
package meetup

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostExists   = errors.New("post already exists")
)

// Occupancy statuses.
const (
	StatusOpen = "open"
	StatusFull = "full"
)

// MinParticipants is the smallest allowed capacity: the host plus one.
const MinParticipants = 2

// Location is a WGS84 point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Post is a meetup. The host is always a participant and never leaves.
type Post struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	HostID          string    `json:"hostId" gorm:"index"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        Location  `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	StartsAt        time.Time `json:"startsAt"`
	MaxParticipants int       `json:"maxParticipants"`
	ParticipantIDs  []string  `json:"participantIds" gorm:"serializer:json"`
	Status          string    `json:"status"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Clone returns a deep copy.
func (p *Post) Clone() *Post {
	cp := *p
	cp.ParticipantIDs = slices.Clone(p.ParticipantIDs)
	return &cp
}

func (p *Post) IsParticipant(userID string) bool {
	return slices.Contains(p.ParticipantIDs, userID)
}

func (p *Post) IsFull() bool {
	return len(p.ParticipantIDs) >= p.MaxParticipants
}

// Join adds userID. It fails with already_participant or capacity_full and
// leaves p unchanged on failure.
func (p *Post) Join(userID string) error {
	if p.IsParticipant(userID) {
		return apperr.ErrAlreadyParticipant
	}
	if p.IsFull() {
		return apperr.ErrCapacityFull
	}
	p.ParticipantIDs = append(p.ParticipantIDs, userID)
	p.recompute()
	return nil
}

// Leave removes userID. The host cannot leave.
func (p *Post) Leave(userID string) error {
	if userID == p.HostID {
		return apperr.ErrHostCannotLeave
	}
	i := slices.Index(p.ParticipantIDs, userID)
	if i < 0 {
		return apperr.ErrNotParticipant
	}
	p.ParticipantIDs = slices.Delete(p.ParticipantIDs, i, i+1)
	p.recompute()
	return nil
}

func (p *Post) recompute() {
	if p.IsFull() {
		p.Status = StatusFull
	} else {
		p.Status = StatusOpen
	}
}

// Store persists posts.
//
// Update applies fn to a private copy of the post and commits the result
// atomically with respect to every other Update of the same post. When fn
// returns an error, or ctx is done before commit, nothing is written. The
// store bumps Version on every commit.
type Store interface {
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, id string) (*Post, error)
	List(ctx context.Context) ([]*Post, error)
	Update(ctx context.Context, id string, fn func(*Post) error) (*Post, error)
	Delete(ctx context.Context, id string) error
}
