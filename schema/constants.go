package schema

// Custom string types for type safety.
type (
	// Category groups checks that contribute to the same sub-score.
	Category string

	// CheckSet names a bundle of checks that applies to a kind of repository.
	CheckSet string

	// OutcomeStatus is the result kind of a single check evaluation.
	OutcomeStatus string

	// RepositoryRole tells whether a repository is the primary one of its project.
	RepositoryRole string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the report store.
	DatabaseBackend string

	// LockBackend represents the backend used for per-repository locks.
	LockBackend string

	// ErrorPolicy decides how error outcomes are counted by the scorer.
	ErrorPolicy string
)

// All categories, in display order.
const (
	DocumentationCategory Category = "documentation"
	LicenseCategory       Category = "license"
	BestPracticesCategory Category = "best_practices"
	SecurityCategory      Category = "security"
	LegalCategory         Category = "legal"
)

// All check sets supported.
const (
	CodeCheckSet      CheckSet = "code"
	CodeLiteCheckSet  CheckSet = "code-lite"
	CommunityCheckSet CheckSet = "community"
	DocsCheckSet      CheckSet = "docs"
)

// All outcome statuses.
const (
	PassedStatus        OutcomeStatus = "passed"
	FailedStatus        OutcomeStatus = "failed"
	ExemptStatus        OutcomeStatus = "exempt"
	NotApplicableStatus OutcomeStatus = "not_applicable"
	ErrorStatus         OutcomeStatus = "error"
)

// Repository roles.
const (
	PrimaryRole   RepositoryRole = "primary" // default
	SecondaryRole RepositoryRole = "secondary"
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All lock backends supported.
const (
	LocalLock    LockBackend = "local" // default
	PostgresLock LockBackend = "postgresql"
	RedisLock    LockBackend = "redis"
)

// Error policies for the scorer.
const (
	ErrorAsFailed ErrorPolicy = "failed" // default
	ErrorExcluded ErrorPolicy = "excluded"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	DocumentationCategory,
	LicenseCategory,
	BestPracticesCategory,
	SecurityCategory,
	LegalCategory,
}

// ValidCategories lists all valid categories.
var ValidCategories = map[Category]struct{}{
	DocumentationCategory: {},
	LicenseCategory:       {},
	BestPracticesCategory: {},
	SecurityCategory:      {},
	LegalCategory:         {},
}

// ValidCheckSets lists all valid check sets.
var ValidCheckSets = map[CheckSet]struct{}{
	CodeCheckSet:      {},
	CodeLiteCheckSet:  {},
	CommunityCheckSet: {},
	DocsCheckSet:      {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidLockBackends lists all valid lock backends.
var ValidLockBackends = map[LockBackend]struct{}{
	LocalLock:    {},
	PostgresLock: {},
	RedisLock:    {},
}

// ValidErrorPolicies lists all valid error policies.
var ValidErrorPolicies = map[ErrorPolicy]struct{}{
	ErrorAsFailed: {},
	ErrorExcluded: {},
}

// DefaultCategoryWeights holds the weight of each category in the global score.
var DefaultCategoryWeights = map[Category]uint{
	DocumentationCategory: 30,
	LicenseCategory:       20,
	BestPracticesCategory: 20,
	SecurityCategory:      20,
	LegalCategory:         10,
}
