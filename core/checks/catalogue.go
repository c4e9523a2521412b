package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/huangsam/repohealth/core/license"
	"github.com/huangsam/repohealth/schema"
)

// check is a Check backed by a plain function.
type check struct {
	def  schema.CheckDefinition
	eval func(ctx context.Context, in *Input) (Result, error)
}

func (c *check) Definition() schema.CheckDefinition { return c.def }

func (c *check) Evaluate(ctx context.Context, in *Input) (Result, error) {
	return c.eval(ctx, in)
}

// Check set shorthands used by the catalogue.
var (
	code      = schema.CodeCheckSet
	codeLite  = schema.CodeLiteCheckSet
	community = schema.CommunityCheckSet
	docs      = schema.DocsCheckSet
)

const (
	needsTree    = schema.TreeCapability
	needsHistory = schema.HistoryCapability
	needsRemote  = schema.RemoteCapability
)

func define(id string, cat schema.Category, weight uint, req schema.Capability, sets []schema.CheckSet, desc string,
	eval func(ctx context.Context, in *Input) (Result, error),
) Check {
	return &check{
		def: schema.CheckDefinition{
			ID:          id,
			Category:    cat,
			Weight:      weight,
			Requires:    req,
			CheckSets:   sets,
			Exemptable:  true,
			Description: desc,
		},
		eval: eval,
	}
}

// strict marks a check as not exemptable.
func strict(c Check) Check {
	c.(*check).def.Exemptable = false
	return c
}

func sets(s ...schema.CheckSet) []schema.CheckSet { return s }

// heading matches a markdown heading naming one of the words.
func heading(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^#+[^\n]*\b(` + strings.Join(words, "|") + `)\b`)
}

var (
	adoptersRe         = heading("adopters", "users")
	codeOfConductRe    = heading("code of conduct")
	contributingRe     = heading("contributing", "contribute")
	governanceRe       = heading("governance")
	roadmapRe          = heading("roadmap")
	securityPolicyRe   = heading("security", "reporting a vulnerability")
	sbomRe             = heading("sbom", "software bill of materials")
	changelogRe        = heading("changelog", "release notes")
	artifactHubRe      = regexp.MustCompile(`https://artifacthub\.io/badge/repository/`)
	openSSFBadgeRe     = regexp.MustCompile(`(?i)https://(?:bestpractices\.coreinfrastructure\.org|www\.bestpractices\.dev)/(?:[a-z]{2}/)?projects/\d+`)
	claRe              = regexp.MustCompile(`(?i)(cla-assistant\.io|easycla|contributor license agreement)`)
	communityMeetingRe = regexp.MustCompile(`(?i)((community|developer|development|contributor|working group)\s+(call|event|meeting|session)|(weekly|biweekly|monthly)\s+meeting|meeting\s+minutes)`)
	slackRe            = regexp.MustCompile(`(?i)https?://[a-z0-9.-]*slack\.(com|cncf\.io)[^\s)"']*`)
	trademarkRe        = regexp.MustCompile(`(?i)(https://(?:www\.)?linuxfoundation\.org/(?:legal/)?trademark-usage|the linux foundation[^\n]*has registered trademarks and uses trademarks)`)
	licenseScanningRe  = regexp.MustCompile(`(?i)https://(?:app\.fossa\.(?:io|com)/projects/|snyk\.io/test/github/)[^\s)"']*`)
	signedOffRe        = regexp.MustCompile(`(?im)^Signed-off-by:\s+\S`)
)

// Thresholds used by the time based checks.
const (
	recentReleaseWindow = 365 * 24 * time.Hour
	maintainedWindow    = 90 * 24 * time.Hour
	dcoCommitWindow     = 20
	signedReleaseDepth  = 5
)

var binaryExtensions = []string{
	"*.exe", "*.dll", "*.so", "*.dylib", "*.jar", "*.class", "*.pyc", "*.o", "*.a", "*.war",
}

var signatureExtensions = []string{".sig", ".asc", ".pem", ".sigstore", ".sigstore.json", ".intoto.jsonl", ".minisig"}

// catalogue returns the built-in checks in registry order.
func catalogue() []Check {
	return []Check{
		// Documentation
		define("adopters", schema.DocumentationCategory, 1, needsTree, sets(community),
			"List of organizations using the project",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "adopters file", adoptersRe, "adopters*", "users*")
			}),
		define("code_of_conduct", schema.DocumentationCategory, 2, needsTree, sets(community),
			"Code of conduct document",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "code of conduct", codeOfConductRe, "code_of_conduct*", "code-of-conduct*")
			}),
		define("contributing", schema.DocumentationCategory, 4, needsTree, sets(code, codeLite, community),
			"Contributing guide",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "contributing guide", contributingRe, "contributing*")
			}),
		define("changelog", schema.DocumentationCategory, 1, needsTree, sets(code),
			"Changelog or release notes",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "changelog", changelogRe, "changelog*", "changes*", "history.md", "news*", "release-notes*")
			}),
		define("governance", schema.DocumentationCategory, 3, needsTree, sets(community),
			"Governance document",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "governance document", governanceRe, "governance*")
			}),
		define("maintainers", schema.DocumentationCategory, 3, needsTree, sets(community),
			"List of maintainers or code owners",
			func(_ context.Context, in *Input) (Result, error) {
				return fileCheck(in.Tree, "maintainers file", "maintainers*", "owners*", "codeowners*")
			}),
		strict(define("readme", schema.DocumentationCategory, 10, needsTree, sets(code, codeLite, community, docs),
			"README file",
			func(_ context.Context, in *Input) (Result, error) {
				return fileCheck(in.Tree, "README", "readme", "readme.*")
			})),
		define("roadmap", schema.DocumentationCategory, 1, needsTree, sets(community),
			"Roadmap document",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "roadmap", roadmapRe, "roadmap*")
			}),
		define("website", schema.DocumentationCategory, 1, needsRemote, sets(community),
			"Project website set on the hosting platform",
			func(_ context.Context, in *Input) (Result, error) {
				if h := strings.TrimSpace(in.Metadata.Homepage); h != "" {
					return Passed(h), nil
				}
				return Failed("no homepage set"), nil
			}),

		// License
		strict(define("license_spdx_id", schema.LicenseCategory, 6, needsTree, sets(code, codeLite, docs),
			"License file with a recognizable SPDX identifier",
			func(_ context.Context, in *Input) (Result, error) {
				d, err := in.License()
				if err != nil {
					return Result{}, err
				}
				if d == nil {
					return Failed("no recognizable license file"), nil
				}
				return Passed(d.ID), nil
			})),
		strict(define("license_approved", schema.LicenseCategory, 4, needsTree, sets(code, codeLite, docs),
			"License is on the approved list",
			func(_ context.Context, in *Input) (Result, error) {
				d, err := in.License()
				if err != nil {
					return Result{}, err
				}
				if d == nil {
					return Failed("no recognizable license file"), nil
				}
				if !license.Approved(d.ID) {
					return Failed(fmt.Sprintf("license %s is not approved", d.ID)), nil
				}
				return Passed(d.ID), nil
			})),
		define("license_scanning", schema.LicenseCategory, 1, needsTree, sets(code),
			"License scanning with FOSSA or Snyk",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "license scanning", licenseScanningRe, ".fossa.yml", ".snyk")
			}),

		// Best practices
		define("artifacthub_badge", schema.BestPracticesCategory, 1, needsTree, sets(code),
			"Artifact Hub badge in the README",
			func(_ context.Context, in *Input) (Result, error) {
				return readmeCheck(in, "Artifact Hub badge", artifactHubRe)
			}),
		define("cla", schema.BestPracticesCategory, 1, needsTree, sets(community),
			"Contributor license agreement",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "CLA", claRe, "cla*", ".clabot")
			}),
		define("community_meeting", schema.BestPracticesCategory, 3, needsTree, sets(community),
			"Community meetings announced in the README",
			func(_ context.Context, in *Input) (Result, error) {
				return readmeCheck(in, "community meeting", communityMeetingRe)
			}),
		define("dco", schema.BestPracticesCategory, 1, needsTree|needsHistory, sets(code),
			"Developer Certificate of Origin sign-offs",
			evalDCO),
		define("github_discussions", schema.BestPracticesCategory, 1, needsRemote, sets(community),
			"GitHub discussions enabled",
			func(_ context.Context, in *Input) (Result, error) {
				if in.Metadata.HasDiscussions {
					return Passed(""), nil
				}
				return Failed("discussions are disabled"), nil
			}),
		define("openssf_badge", schema.BestPracticesCategory, 5, needsTree, sets(code),
			"OpenSSF best practices badge in the README",
			func(_ context.Context, in *Input) (Result, error) {
				return readmeCheck(in, "OpenSSF best practices badge", openSSFBadgeRe)
			}),
		define("recent_release", schema.BestPracticesCategory, 3, needsRemote, sets(code),
			"A release published within the last year",
			func(_ context.Context, in *Input) (Result, error) {
				rel, ok := in.Metadata.LatestRelease()
				if !ok {
					return Failed("no releases"), nil
				}
				if in.Now.Sub(rel.PublishedAt) > recentReleaseWindow {
					return Failed(fmt.Sprintf("last release %s published %s", rel.Tag, rel.PublishedAt.Format(time.DateOnly))), nil
				}
				return Passed(rel.Tag), nil
			}),
		define("slack_presence", schema.BestPracticesCategory, 1, needsTree, sets(community),
			"Slack channel linked from the README",
			func(_ context.Context, in *Input) (Result, error) {
				return readmeCheck(in, "Slack link", slackRe)
			}),

		// Security
		define("binary_artifacts", schema.SecurityCategory, 2, needsTree, sets(code, codeLite),
			"No generated binaries committed",
			func(ctx context.Context, in *Input) (Result, error) {
				found, err := findBinaries(ctx, in.Tree)
				if err != nil {
					return Result{}, err
				}
				if found != "" {
					return Failed("binary artifact " + found), nil
				}
				return Passed(""), nil
			}),
		define("dangerous_workflow", schema.SecurityCategory, 2, needsTree, sets(code),
			"No workflow checks out untrusted code with elevated triggers",
			evalDangerousWorkflow),
		define("dependency_update_tool", schema.SecurityCategory, 2, needsTree, sets(code, codeLite),
			"Dependabot or Renovate configured",
			func(_ context.Context, in *Input) (Result, error) {
				p, ok, err := findFile(in.Tree, []string{".", ".github"},
					"dependabot.yml", "dependabot.yaml", "renovate.json", "renovate.json5", ".renovaterc", ".renovaterc.json")
				if err != nil {
					return Result{}, err
				}
				if !ok {
					return Failed("no dependency update tool configured"), nil
				}
				return Passed(p), nil
			}),
		define("maintained", schema.SecurityCategory, 3, needsHistory, sets(code, codeLite),
			"Commits within the last 90 days",
			evalMaintained),
		define("sbom", schema.SecurityCategory, 1, needsTree, sets(code),
			"Software bill of materials published",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "SBOM", sbomRe, "sbom*", "*.spdx", "*.spdx.json", "*.cdx.json", "bom.json", "bom.xml")
			}),
		define("security_policy", schema.SecurityCategory, 6, needsTree, sets(code, codeLite, community),
			"Security policy",
			func(_ context.Context, in *Input) (Result, error) {
				return fileOrReadmeCheck(in, "security policy", securityPolicyRe, "security*")
			}),
		define("signed_releases", schema.SecurityCategory, 1, needsRemote, sets(code),
			"Recent releases ship signatures",
			evalSignedReleases),
		define("token_permissions", schema.SecurityCategory, 2, needsTree, sets(code),
			"Workflows declare token permissions",
			evalTokenPermissions),

		// Legal
		define("trademark_disclaimer", schema.LegalCategory, 1, needsTree, sets(community),
			"Trademark disclaimer in the README",
			func(_ context.Context, in *Input) (Result, error) {
				return readmeCheck(in, "trademark disclaimer", trademarkRe)
			}),
	}
}
