package portal

import "sort"

const recentDownloads = 10

// Count is a number of downloads attributed to Name.
type Count struct {
	Name      string
	Downloads int
}

// Summary is the admin dashboard view of download activity.
type Summary struct {
	Total          int
	UniqueStudents int
	Completed      int
	BySubject      []Count
	ByLevel        []Count
	Recent         []Download
}

// Summarize aggregates downloads, which must be ordered newest first.
// Breakdowns are ordered by count, highest first, then by name.
func Summarize(downloads []Download) Summary {
	students := make(map[string]struct{})
	subjects := make(map[string]int)
	levels := make(map[string]int)

	s := Summary{Total: len(downloads)}
	for _, d := range downloads {
		students[d.UserID] = struct{}{}
		subjects[d.Subject]++
		levels[d.Level]++
		if d.Completed {
			s.Completed++
		}
	}

	s.UniqueStudents = len(students)
	s.BySubject = ranked(subjects)
	s.ByLevel = ranked(levels)
	s.Recent = downloads[:min(len(downloads), recentDownloads)]

	return s
}

func ranked(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Downloads: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Downloads != out[j].Downloads {
			return out[i].Downloads > out[j].Downloads
		}
		return out[i].Name < out[j].Name
	})
	return out
}
