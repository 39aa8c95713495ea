package hypothesis

import "uxpulse/api/models"

// fallbacks are the built-in hypothesis/fix pairs used when no model
// backend is configured or the call fails.
var fallbacks = map[models.IssueType]Result{
	models.IssueRageClick: {
		Hypothesis: "An element on the page looks clickable but responds slowly or not at all, so users click it repeatedly.",
		Fix:        "Check the element's click handler and loading state; add immediate visual feedback on click.",
	},
	models.IssueDeadClick: {
		Hypothesis: "The page does not match what users expected from the link that brought them here, so they leave without engaging.",
		Fix:        "Align the page's above-the-fold content with the referring link text and add a clear next action.",
	},
	models.IssueNavLoop: {
		Hypothesis: "Users keep returning to this page because they cannot find the information or action they need elsewhere.",
		Fix:        "Review the page's outgoing links and surface the most sought content directly on it.",
	},
	models.IssueBackForthLoop: {
		Hypothesis: "Users bounce between two pages comparing or searching for something neither page answers on its own.",
		Fix:        "Cross-link the compared content or merge the key details onto one page.",
	},
	models.IssueWandering: {
		Hypothesis: "Users browse many pages without converting, which suggests unclear navigation or a missing call to action.",
		Fix:        "Add a persistent, visible call to action and simplify the navigation from this entry page.",
	},
	models.IssueHighBounce: {
		Hypothesis: "Visitors leave within seconds, which usually means slow loading, a mismatch with the traffic source, or an off-putting first screen.",
		Fix:        "Measure load time for this page and review whether its first screen answers the visitor's intent.",
	},
	models.IssueStalledForm: {
		Hypothesis: "Users spend a long time on the form without submitting, pointing to confusing fields or validation errors.",
		Fix:        "Shorten the form, clarify field labels, and show inline validation before submit.",
	},
	models.IssueFunnelDropoff: {
		Hypothesis: "A large share of users abandon the flow between these steps, suggesting friction or missing motivation at the transition.",
		Fix:        "Walk the transition manually on mobile and desktop; reduce required input and restate the value of continuing.",
	},
	models.IssueScanAndDrop: {
		Hypothesis: "Users read the page to the end and still leave, so the content informs but does not convert.",
		Fix:        "Add a concrete next step at the bottom of the page where readers finish.",
	},
	models.IssueSearchFail: {
		Hypothesis: "Users abandon the search results page, which means results are irrelevant or empty for common queries.",
		Fix:        "Log failing queries, tune result ranking, and show suggestions when results are sparse.",
	},
}

var genericFallback = Result{
	Hypothesis: "User behavior on this page deviates from the expected flow.",
	Fix:        "Review session recordings for this page to identify the friction point.",
}

func fallbackFor(issueType models.IssueType) Result {
	if r, ok := fallbacks[issueType]; ok {
		return r
	}
	return genericFallback
}
