package report

import (
	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/metrics"
)

// Metric categories.
const (
	TypeActivity    = "activity"
	TypeCommunity   = "community"
	TypeRisk        = "risk"
	TypeComposition = "composition"
	TypeGovernance  = "governance"
)

// Input is what every catalogue metric is computed from.
type Input struct {
	Aggregator *aggregator.Aggregator
	// Days is the observation window used for commit frequencies.
	Days int
}

type metric = metrics.Func[Input, any]

func def(name, display, typ, desc string, fn func(Input) any) metrics.Metric[Input, any] {
	return metric{
		MetricMeta: metrics.MetricMeta{
			MetricName:        name,
			MetricDisplayName: display,
			MetricDescription: desc,
			MetricType:        typ,
		},
		Fn: fn,
	}
}

// catalogue lists every reported metric in output order.
var catalogue = metrics.NewRegistry[Input, any]().MustRegister(
	def("total_commits", "Total commits", TypeActivity,
		"Commits in the analysis window.",
		func(in Input) any { return in.Aggregator.CommitCount() }),
	def("total_contributors", "Total contributors", TypeCommunity,
		"Distinct commit authors.",
		func(in Input) any { return in.Aggregator.ContributorCount() }),
	def("total_organizations", "Total organizations", TypeCommunity,
		"Distinct author email domains.",
		func(in Input) any { return in.Aggregator.OrganizationCount() }),
	def("pony_factor", "Pony factor", TypeRisk,
		"Fewest authors responsible for more than the pony threshold of commits. Low values mean concentration risk.",
		func(in Input) any { return in.Aggregator.PonyFactor() }),
	def("elephant_factor", "Elephant factor", TypeRisk,
		"Fewest organizations responsible for more than the elephant threshold of commits.",
		func(in Input) any { return in.Aggregator.ElephantFactor() }),
	def("recent_organizations", "Recent organizations", TypeCommunity,
		"Organizations with commits in the last 90 days of the window.",
		func(in Input) any { return in.Aggregator.RecentOrganizations() }),
	def("recent_contributors", "Recent contributors", TypeCommunity,
		"Authors with commits in the last 90 days of the window.",
		func(in Input) any { return in.Aggregator.RecentContributors() }),
	def("recent_commits", "Recent commits", TypeActivity,
		"Commits in the last 90 days of the window.",
		func(in Input) any { return in.Aggregator.RecentCommits() }),
	def("contributor_growth", "Contributor growth", TypeCommunity,
		"Authors in the second half of the window minus authors in the first half.",
		func(in Input) any { return in.Aggregator.GrowthOfContributors() }),
	def("contributor_growth_rate", "Contributor growth rate", TypeCommunity,
		"Relative change of authors between the window halves.",
		func(in Input) any { return in.Aggregator.GrowthRateOfContributors() }),
	def("active_branches", "Active branches", TypeActivity,
		"Distinct branches referenced by commits.",
		func(in Input) any { return in.Aggregator.ActiveBranchCount() }),
	def("days_since_last_commit", "Days since last commit", TypeActivity,
		"Whole days between the window end and the latest commit.",
		func(in Input) any {
			days, ok := in.Aggregator.DaysSinceLastCommit()
			if !ok {
				return nil
			}

			return days
		}),
	def("casual_regular_contributors_rate", "Casual to core+regular rate", TypeCommunity,
		"Casual contributors divided by core and regular contributors.",
		func(in Input) any { return in.Aggregator.CasualRegularContributorsRate() }),
	def("returning_contributors", "Returning contributors", TypeCommunity,
		"Authors active both before and during the last 90 days.",
		func(in Input) any { return in.Aggregator.ReturningContributors() }),
	def("commits_over_periods_rate", "Recent commit share", TypeActivity,
		"Share of commits made in the last 90 days.",
		func(in Input) any { return in.Aggregator.CommitsOverPeriodsRate() }),
	def("file_types_code", "Code files", TypeComposition,
		"Touched files matching the code pattern.",
		func(in Input) any { return in.Aggregator.FileTypeMetrics().Code }),
	def("file_types_binary", "Binary files", TypeComposition,
		"Touched files matching the binary pattern.",
		func(in Input) any { return in.Aggregator.FileTypeMetrics().Binary }),
	def("file_types_other", "Other files", TypeComposition,
		"Touched files matching neither pattern.",
		func(in Input) any { return in.Aggregator.FileTypeMetrics().Other }),
	def("commit_size_added_lines", "Added lines", TypeComposition,
		"Lines added across all commits.",
		func(in Input) any { return in.Aggregator.CommitSizeMetrics().AddedLines }),
	def("commit_size_removed_lines", "Removed lines", TypeComposition,
		"Lines removed across all commits.",
		func(in Input) any { return in.Aggregator.CommitSizeMetrics().RemovedLines }),
	def("message_size_total", "Message characters", TypeComposition,
		"Characters across all commit messages.",
		func(in Input) any { return in.Aggregator.MessageSizeMetrics().Total }),
	def("message_size_mean", "Mean message size", TypeComposition,
		"Mean commit message length in characters.",
		func(in Input) any { return in.Aggregator.MessageSizeMetrics().Mean }),
	def("message_size_median", "Median message size", TypeComposition,
		"Median commit message length in characters, upper middle for even counts.",
		func(in Input) any { return in.Aggregator.MessageSizeMetrics().Median }),
	def("developer_categories_core", "Core developers", TypeCommunity,
		"Authors covering the first part of commits up to the regular cutoff.",
		func(in Input) any { return in.Aggregator.DeveloperCategories().Core }),
	def("developer_categories_regular", "Regular developers", TypeCommunity,
		"Authors between the regular and casual cutoffs.",
		func(in Input) any { return in.Aggregator.DeveloperCategories().Regular }),
	def("developer_categories_casual", "Casual developers", TypeCommunity,
		"Authors beyond the casual cutoff.",
		func(in Input) any { return in.Aggregator.DeveloperCategories().Casual }),
	def("commits_per_week", "Commits per week", TypeActivity,
		"Mean commits per week, null when the window is shorter than a week.",
		func(in Input) any { return floatOrNil(in.Aggregator.CommitFrequencyMetrics(in.Days).Week) }),
	def("commits_per_month", "Commits per month", TypeActivity,
		"Mean commits per 30 days, null when the window is shorter.",
		func(in Input) any { return floatOrNil(in.Aggregator.CommitFrequencyMetrics(in.Days).Month) }),
	def("commits_per_year", "Commits per year", TypeActivity,
		"Mean commits per 365 days, null when the window is shorter.",
		func(in Input) any { return floatOrNil(in.Aggregator.CommitFrequencyMetrics(in.Days).Year) }),
	def("found_files_license", "License file", TypeGovernance,
		"1 when a license file exists at the repository root.",
		func(in Input) any { return in.Aggregator.FoundFiles().License }),
	def("found_files_adopters", "Adopters file", TypeGovernance,
		"1 when an adopters file exists at the repository root.",
		func(in Input) any { return in.Aggregator.FoundFiles().Adopters }),
)

// MetricNames returns every reported metric name in output order.
func MetricNames() []string {
	return catalogue.Names()
}

// Describe returns the catalogue entry for a metric name.
func Describe(name string) (metrics.Metric[Input, any], bool) {
	return catalogue.Get(name)
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}
