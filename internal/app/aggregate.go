package app

import (
	"math"
	"sort"

	"github.com/pscheid92/screentime/internal/domain"
)

const (
	dateLayout           = "2006-01-02"
	maxProductivityScore = 100
	socialPenaltyDivisor = 10
)

type dayBucket struct {
	seconds  int
	sessions int
}

// Aggregate rolls sessions into the dashboard summary over a window of days.
// Days are UTC calendar dates of StartedAt.
func Aggregate(sessions []domain.ScreenSession, days int) domain.Summary {
	if days < 1 {
		days = 1
	}

	byDay := make(map[string]*dayBucket)
	byCategory := make(map[string]int)
	totalSeconds := 0

	for _, s := range sessions {
		date := s.StartedAt.UTC().Format(dateLayout)
		b, ok := byDay[date]
		if !ok {
			b = &dayBucket{}
			byDay[date] = b
		}
		b.seconds += s.Duration
		b.sessions++

		category := s.Category
		if category == "" {
			category = domain.DefaultCategory
		}
		byCategory[category] += s.Duration
		totalSeconds += s.Duration
	}

	daily := make([]domain.DailyUsage, 0, len(byDay))
	for date, b := range byDay {
		daily = append(daily, domain.DailyUsage{Date: date, Minutes: toMinutes(b.seconds), Sessions: b.sessions})
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	usage := make([]domain.CategoryUsage, 0, len(byCategory))
	for category, seconds := range byCategory {
		usage = append(usage, domain.CategoryUsage{Category: category, Minutes: toMinutes(seconds)})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Minutes != usage[j].Minutes {
			return usage[i].Minutes > usage[j].Minutes
		}
		return usage[i].Category < usage[j].Category
	})

	return domain.Summary{
		DailyAverage:      int(math.Round(float64(totalSeconds) / 60 / float64(days))),
		AppUsage:          usage,
		ProductivityScore: productivityScore(toMinutes(byCategory[domain.SocialCategory])),
		Daily:             daily,
	}
}

func toMinutes(seconds int) int {
	return int(math.Round(float64(seconds) / 60))
}

func productivityScore(socialMinutes int) int {
	score := maxProductivityScore - float64(socialMinutes)/socialPenaltyDivisor
	return int(math.Round(math.Max(0, score)))
}
