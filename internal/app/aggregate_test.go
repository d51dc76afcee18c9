package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/screentime/internal/domain"
)

func session(start time.Time, seconds int, category string) domain.ScreenSession {
	return domain.ScreenSession{
		StartedAt: start,
		EndedAt:   start.Add(time.Duration(seconds) * time.Second),
		Duration:  seconds,
		Category:  category,
	}
}

func TestAggregate_SameDaySessions(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sessions := []domain.ScreenSession{
		session(day, 600, "learning"),
		session(day.Add(2*time.Hour), 1800, "learning"),
	}

	sum := Aggregate(sessions, 1)

	require.Len(t, sum.Daily, 1)
	assert.Equal(t, domain.DailyUsage{Date: "2026-03-02", Minutes: 40, Sessions: 2}, sum.Daily[0])
	assert.Equal(t, []domain.CategoryUsage{{Category: "learning", Minutes: 40}}, sum.AppUsage)
	assert.Equal(t, 40, sum.DailyAverage)
	assert.Equal(t, 100, sum.ProductivityScore)
}

func TestAggregate_DailySortedAscending(t *testing.T) {
	sessions := []domain.ScreenSession{
		session(time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC), 60, "learning"),
		session(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), 60, "learning"),
		session(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), 60, "learning"),
	}

	sum := Aggregate(sessions, 7)

	dates := make([]string, 0, len(sum.Daily))
	for _, d := range sum.Daily {
		dates = append(dates, d.Date)
	}
	assert.Equal(t, []string{"2026-03-01", "2026-03-03", "2026-03-05"}, dates)
}

func TestAggregate_GroupsByUTCDate(t *testing.T) {
	// 23:30 in New York on March 1 is March 2 in UTC.
	ny := time.FixedZone("EST", -5*3600)
	sum := Aggregate([]domain.ScreenSession{session(time.Date(2026, 3, 1, 23, 30, 0, 0, ny), 120, "")}, 1)

	require.Len(t, sum.Daily, 1)
	assert.Equal(t, "2026-03-02", sum.Daily[0].Date)
}

func TestAggregate_CategoriesSortedDescendingWithDefault(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sessions := []domain.ScreenSession{
		session(day, 300, "social"),
		session(day, 1200, "learning"),
		session(day, 600, ""),
		session(day, 600, "games"),
	}

	sum := Aggregate(sessions, 1)

	assert.Equal(t, []domain.CategoryUsage{
		{Category: "learning", Minutes: 20},
		{Category: "games", Minutes: 10},
		{Category: "other", Minutes: 10},
		{Category: "social", Minutes: 5},
	}, sum.AppUsage)
}

func TestAggregate_MinutesRounded(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sum := Aggregate([]domain.ScreenSession{session(day, 89, "a"), session(day.Add(time.Hour), 1, "b")}, 1)

	assert.Equal(t, 2, sum.Daily[0].Minutes)    // 90s
	assert.Equal(t, 1, sum.AppUsage[0].Minutes) // 89s
	assert.Equal(t, 0, sum.AppUsage[1].Minutes) // 1s
}

func TestAggregate_DailyAverageOverWindow(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sessions := []domain.ScreenSession{
		session(day, 3600, "learning"),
		session(day.AddDate(0, 0, 1), 3600, "learning"),
	}

	sum := Aggregate(sessions, 7)

	// 120 minutes over 7 days = 17.14
	assert.Equal(t, 17, sum.DailyAverage)
}

func TestAggregate_ProductivityScore(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		socialSeconds int
		want          int
	}{
		{"no social", 0, 100},
		{"one hour social", 3600, 94},
		{"penalty rounds", 45 * 60, 96},
		{"floored at zero", 1500 * 60, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := []domain.ScreenSession{session(day, 600, "learning")}
			if tt.socialSeconds > 0 {
				sessions = append(sessions, session(day, tt.socialSeconds, "social"))
			}
			assert.Equal(t, tt.want, Aggregate(sessions, 1).ProductivityScore)
		})
	}
}

func TestAggregate_Empty(t *testing.T) {
	sum := Aggregate(nil, 7)

	assert.Equal(t, 0, sum.DailyAverage)
	assert.Equal(t, 100, sum.ProductivityScore)
	assert.NotNil(t, sum.Daily)
	assert.NotNil(t, sum.AppUsage)
	assert.Empty(t, sum.Daily)
	assert.Empty(t, sum.AppUsage)
}
