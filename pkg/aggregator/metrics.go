package aggregator

import (
	"time"

	"github.com/Sumatoshi-tech/healthfang/pkg/alg/stats"
)

// Commit frequency periods in days.
const (
	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
)

// FileTypes counts touched files by classification.
type FileTypes struct {
	Code   int
	Binary int
	Other  int
}

// CommitSize holds cumulative line changes.
type CommitSize struct {
	AddedLines   int
	RemovedLines int
}

// MessageSize summarizes commit message lengths in characters.
type MessageSize struct {
	Total  int
	Mean   float64
	Median int
}

// CommitFrequency is the mean number of commits per period. A nil entry
// means the observation window is shorter than the period.
type CommitFrequency struct {
	Week  *float64
	Month *float64
	Year  *float64
}

// DeveloperCategories counts contributors per category.
type DeveloperCategories struct {
	Core    int
	Regular int
	Casual  int
}

// CommitRef identifies a commit and its date.
type CommitRef struct {
	ID   string
	Date time.Time
}

// Metadata holds the earliest and latest commits seen. Both are nil until a
// commit with an identifier and a parseable date is processed.
type Metadata struct {
	First *CommitRef
	Last  *CommitRef
}

// FoundFiles reports governance file presence as 1 or 0.
type FoundFiles struct {
	License  int
	Adopters int
}

// CommitCount returns the number of processed commit events.
func (a *Aggregator) CommitCount() int {
	return a.totalCommits
}

// ContributorCount returns the number of distinct authors.
func (a *Aggregator) ContributorCount() int {
	return a.contributors.len()
}

// OrganizationCount returns the number of distinct author email domains.
func (a *Aggregator) OrganizationCount() int {
	return a.organizations.len()
}

// PonyFactor returns the smallest number of top contributors whose commits
// make up more than the pony threshold of all commits.
func (a *Aggregator) PonyFactor() int {
	return a.concentration(a.contributors, a.settings.PonyThreshold)
}

// ElephantFactor is PonyFactor over organizations.
func (a *Aggregator) ElephantFactor() int {
	return a.concentration(a.organizations, a.settings.ElephantThreshold)
}

func (a *Aggregator) concentration(t *tally, threshold float64) int {
	if t.len() == 0 {
		return 0
	}

	accumulated := 0
	factor := 0

	for _, entry := range t.mostCommon() {
		accumulated += entry.count
		factor++

		if stats.Ratio(accumulated, a.totalCommits) > threshold {
			break
		}
	}

	return factor
}

// FileTypeMetrics returns the file classification counters.
func (a *Aggregator) FileTypeMetrics() FileTypes {
	return a.fileTypes
}

// CommitSizeMetrics returns the cumulative added and removed lines.
func (a *Aggregator) CommitSizeMetrics() CommitSize {
	return a.commitSize
}

// MessageSizeMetrics returns the message length summary.
func (a *Aggregator) MessageSizeMetrics() MessageSize {
	return MessageSize{
		Total:  stats.Sum(a.messageSizes),
		Mean:   stats.Mean(a.messageSizes),
		Median: stats.UpperMedian(a.messageSizes),
	}
}

// CommitFrequencyMetrics returns mean commits per week, month and year over
// daysInterval days. Periods longer than the interval are left nil.
func (a *Aggregator) CommitFrequencyMetrics(daysInterval int) CommitFrequency {
	var freq CommitFrequency

	if daysInterval >= daysPerWeek {
		freq.Week = a.perPeriod(daysInterval, daysPerWeek)
	}

	if daysInterval >= daysPerMonth {
		freq.Month = a.perPeriod(daysInterval, daysPerMonth)
	}

	if daysInterval >= daysPerYear {
		freq.Year = a.perPeriod(daysInterval, daysPerYear)
	}

	return freq
}

func (a *Aggregator) perPeriod(daysInterval, period int) *float64 {
	rate := float64(a.totalCommits) / (float64(daysInterval) / float64(period))

	return &rate
}

// DeveloperCategories splits contributors into core, regular and casual in
// one greedy pass over the ranking. A contributor with more commits than the
// last core contributor is core; one tied with it is at least regular.
func (a *Aggregator) DeveloperCategories() DeveloperCategories {
	var cats DeveloperCategories

	regularCutoff := int(a.settings.RegularThreshold * float64(a.totalCommits))
	casualCutoff := int(a.settings.CasualThreshold * float64(a.totalCommits))
	accumulated := 0
	lastCore := 0

	for _, entry := range a.contributors.mostCommon() {
		accumulated += entry.count

		switch {
		case accumulated <= regularCutoff || entry.count > lastCore:
			lastCore = entry.count
			cats.Core++
		case accumulated <= casualCutoff || entry.count == lastCore:
			cats.Regular++
		default:
			cats.Casual++
		}
	}

	return cats
}

// RecentOrganizations returns the organizations active in the last RecentDays.
func (a *Aggregator) RecentOrganizations() int {
	return len(a.recentOrganizations)
}

// RecentContributors returns the contributors active in the last RecentDays.
func (a *Aggregator) RecentContributors() int {
	return len(a.recentContributors)
}

// RecentCommits returns the commits made in the last RecentDays.
func (a *Aggregator) RecentCommits() int {
	return a.recentCommits
}

// GrowthOfContributors returns second-half minus first-half contributors.
func (a *Aggregator) GrowthOfContributors() int {
	return len(a.growthSecond) - len(a.growthFirst)
}

// GrowthRateOfContributors returns the relative change in contributors
// between the window halves. With no first-half contributors the rate is
// the second-half count.
func (a *Aggregator) GrowthRateOfContributors() float64 {
	first := len(a.growthFirst)
	second := len(a.growthSecond)

	if first == 0 {
		return float64(second)
	}

	return float64(second-first) / float64(first)
}

// ActiveBranchCount returns the number of distinct branches seen in refs.
func (a *Aggregator) ActiveBranchCount() int {
	return len(a.branches)
}

// AnalysisMetadata returns the first and last commits seen.
func (a *Aggregator) AnalysisMetadata() Metadata {
	return Metadata{First: cloneRef(a.first), Last: cloneRef(a.last)}
}

func cloneRef(ref *CommitRef) *CommitRef {
	if ref == nil {
		return nil
	}

	clone := *ref

	return &clone
}

// DaysSinceLastCommit returns the whole days between the window end and the
// latest commit. It reports false when no commit was seen.
func (a *Aggregator) DaysSinceLastCommit() (int, bool) {
	if a.last == nil {
		return 0, false
	}

	return daysBetween(a.last.Date, a.settings.To), true
}

// CasualRegularContributorsRate returns casual contributors divided by core
// plus regular contributors.
func (a *Aggregator) CasualRegularContributorsRate() float64 {
	cats := a.DeveloperCategories()

	return stats.Ratio(cats.Casual, cats.Core+cats.Regular)
}

// ReturningContributors returns the contributors active both before and
// within the last RecentDays.
func (a *Aggregator) ReturningContributors() int {
	return a.retentionFirst.intersectionLen(a.retentionSecond)
}

// CommitsOverPeriodsRate returns recent commits divided by all commits.
func (a *Aggregator) CommitsOverPeriodsRate() float64 {
	return stats.Ratio(a.recentCommits, a.totalCommits)
}

// FoundFiles reports which governance files are present.
func (a *Aggregator) FoundFiles() FoundFiles {
	return FoundFiles{
		License:  presence(a.licensePresence),
		Adopters: presence(a.adoptersPresence),
	}
}

func presence(counter int) int {
	if counter > 0 {
		return 1
	}

	return 0
}

// WindowDays returns the whole days in the analysis window.
func (a *Aggregator) WindowDays() int {
	return daysBetween(a.settings.From, a.settings.To)
}
