package searchconsole

// Wire shapes for the remote APIs. They never leave this package.

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type sitesListResponse struct {
	SiteEntry []struct {
		SiteURL         string `json:"siteUrl"`
		PermissionLevel string `json:"permissionLevel"`
	} `json:"siteEntry"`
}

type analyticsQueryRequest struct {
	StartDate       string   `json:"startDate"`
	EndDate         string   `json:"endDate"`
	Dimensions      []string `json:"dimensions"`
	RowLimit        int      `json:"rowLimit"`
	StartRow        int      `json:"startRow"`
	AggregationType string   `json:"aggregationType,omitempty"`
	DataState       string   `json:"dataState,omitempty"`
}

type analyticsQueryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
	ResponseAggregationType string `json:"responseAggregationType"`
}

type inspectRequest struct {
	InspectionURL string `json:"inspectionUrl"`
	SiteURL       string `json:"siteUrl"`
	LanguageCode  string `json:"languageCode,omitempty"`
}

type inspectResponse struct {
	InspectionResult struct {
		InspectionResultLink string `json:"inspectionResultLink"`
		IndexStatusResult    struct {
			Verdict         string `json:"verdict"`
			CoverageState   string `json:"coverageState"`
			RobotsTxtState  string `json:"robotsTxtState"`
			IndexingState   string `json:"indexingState"`
			LastCrawlTime   string `json:"lastCrawlTime"`
			PageFetchState  string `json:"pageFetchState"`
			GoogleCanonical string `json:"googleCanonical"`
			UserCanonical   string `json:"userCanonical"`
		} `json:"indexStatusResult"`
		MobileUsabilityResult struct {
			Verdict string `json:"verdict"`
			Issues  []struct {
				IssueType string `json:"issueType"`
				Severity  string `json:"severity"`
				Message   string `json:"message"`
			} `json:"issues"`
		} `json:"mobileUsabilityResult"`
		RichResultsResult struct {
			Verdict       string `json:"verdict"`
			DetectedItems []struct {
				RichResultType string `json:"richResultType"`
			} `json:"detectedItems"`
		} `json:"richResultsResult"`
	} `json:"inspectionResult"`
}

type publishRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

type publishResponse struct {
	URLNotificationMetadata struct {
		URL          string `json:"url"`
		LatestUpdate struct {
			URL        string `json:"url"`
			Type       string `json:"type"`
			NotifyTime string `json:"notifyTime"`
		} `json:"latestUpdate"`
	} `json:"urlNotificationMetadata"`
}

type sitemapsListResponse struct {
	Sitemap []struct {
		Path            string `json:"path"`
		Type            string `json:"type"`
		LastSubmitted   string `json:"lastSubmitted"`
		LastDownloaded  string `json:"lastDownloaded"`
		IsPending       bool   `json:"isPending"`
		IsSitemapsIndex bool   `json:"isSitemapsIndex"`
		Warnings        int64  `json:"warnings,string"`
		Errors          int64  `json:"errors,string"`
	} `json:"sitemap"`
}
