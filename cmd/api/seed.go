package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alumni/internal/content"
	"alumni/internal/events"
	"alumni/internal/members"
)

// seedDemoData fills the in-memory stores with a small directory, some content and upcoming
// events for local development. It never creates sign-in credentials.
func seedDemoData(ctx context.Context, repos stores) error {
	now := time.Now().UTC()
	year := func(y int) *int { return &y }
	seats := func(n int) *int { return &n }

	profiles := []members.Profile{
		{
			ID:             uuid.New(),
			Email:          "grace.hopper@alumni.local",
			Role:           members.RoleUser,
			Approved:       true,
			FirstName:      "Grace",
			LastName:       "Hopper",
			GraduationYear: year(1934),
			Department:     "Mathematics",
			Occupation:     "Rear Admiral",
			Company:        "US Navy",
			City:           "Arlington",
			Bio:            "Compiler pioneer and mentor to generations of programmers.",
		},
		{
			ID:             uuid.New(),
			Email:          "alan.turing@alumni.local",
			Role:           members.RoleUser,
			Approved:       true,
			FirstName:      "Alan",
			LastName:       "Turing",
			GraduationYear: year(1934),
			Department:     "Mathematics",
			Occupation:     "Researcher",
			City:           "Manchester",
		},
		{
			ID:             uuid.New(),
			Email:          "katherine.johnson@alumni.local",
			Role:           members.RoleUser,
			Approved:       true,
			FirstName:      "Katherine",
			LastName:       "Johnson",
			GraduationYear: year(1937),
			Department:     "Mathematics",
			Occupation:     "Research Mathematician",
			Company:        "NASA",
			City:           "Hampton",
		},
		{
			ID:             uuid.New(),
			Email:          "new.graduate@alumni.local",
			Role:           members.RoleUser,
			Approved:       false,
			FirstName:      "Jordan",
			LastName:       "Lee",
			GraduationYear: year(now.Year()),
			Department:     "Computer Science",
		},
	}
	for i := range profiles {
		profiles[i].Connections = []uuid.UUID{}
		profiles[i].CreatedAt = now.Add(time.Duration(i) * time.Minute)
		profiles[i].UpdatedAt = profiles[i].CreatedAt
		if err := repos.profiles.Set(ctx, profiles[i]); err != nil {
			return fmt.Errorf("seed profile %s: %w", profiles[i].Email, err)
		}
	}

	entries := []content.Entry{
		{
			Kind:      content.KindAnnouncement,
			Title:     "Homecoming weekend registration is open",
			Summary:   "Join us on campus for tours, talks and the alumni dinner.",
			Body:      "<p>Registration closes two weeks before the event.</p>",
			Published: true,
		},
		{
			Kind:      content.KindBlogPost,
			Title:     "Ten years of the mentoring programme",
			Summary:   "What we learned pairing graduates with current students.",
			Body:      "<p>Over four hundred pairs have completed the programme.</p>",
			Published: true,
		},
		{
			Kind:      content.KindHallOfFame,
			Title:     "Grace Hopper",
			Summary:   "Inducted for contributions to programming languages.",
			ClassYear: year(1934),
			Published: true,
		},
		{
			Kind:      content.KindBusiness,
			Title:     "Turing Tutoring",
			Summary:   "Mathematics tutoring for secondary school students.",
			Category:  "Education",
			LinkURL:   "https://example.org/tutoring",
			AuthorID:  profiles[1].ID,
			Published: true,
		},
	}
	for i, entry := range entries {
		entry.ID = uuid.New()
		entry.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		entry.UpdatedAt = entry.CreatedAt
		if _, err := repos.content.Create(ctx, entry); err != nil {
			return fmt.Errorf("seed content %q: %w", entry.Title, err)
		}
	}

	day := func(offset int) *time.Time {
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
		return &d
	}
	demoEvents := []events.Event{
		{Name: "Alumni Networking Night", Description: "Drinks and introductions across class years.", Location: "Student Union Bar", Date: day(14), Time: "18:30", Capacity: seats(60)},
		{Name: "Homecoming Dinner", Description: "Three-course dinner with the vice-chancellor.", Location: "Great Hall", Date: day(45), Time: "19:00", Capacity: seats(120)},
		{Name: "Career Panel: Life after Graduation", Location: "Lecture Theatre 2", Date: day(30), Time: "17:00"},
	}
	for _, event := range demoEvents {
		event.ID = uuid.New()
		event.CreatedAt = now
		event.UpdatedAt = now
		if _, err := repos.events.Create(ctx, event); err != nil {
			return fmt.Errorf("seed event %q: %w", event.Name, err)
		}
	}

	return nil
}
