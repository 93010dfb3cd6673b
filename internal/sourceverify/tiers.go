package sourceverify

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/veritas-audit/veritas/internal/cache"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// pageReachable fetches rawURL via the shared Fetcher, retrying transient
// failures, and reports whether the page came back at all. Tier 4 uses this
// in place of a bare HEAD check so a flaky but genuinely reachable result
// isn't discarded on the first timeout.
func (s *Service) pageReachable(ctx context.Context, rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if err := s.limiter.Wait(ctx, rawURL); err != nil {
		return false
	}
	_, err := s.fetcher.FetchWithRetry(ctx, rawURL)
	return err == nil
}

func decodeAndCapture(resp *http.Response) ([]byte, error) {
	return io.ReadAll(resp.Body)
}

// tierLibraryReuse is Tier 0: semantic-search VerifiedSources at the
// configured threshold, ask the LLM to judge relevance for this specific
// claim, and on acceptance reuse the book's metadata/URL but ask for a
// *fresh* quote rather than ever reusing a prior one (spec §4.D Tier 0).
func (s *Service) tierLibraryReuse(ctx context.Context, req Request) (*Result, error) {
	vec, err := s.embedder.Embed(ctx, req.Title+" "+req.ClaimText)
	if err != nil {
		return nil, err
	}
	candidates, err := s.library.SearchVerifiedSources(ctx, vec, s.cfg.LibraryThreshold, 5)
	if err != nil || len(candidates) == 0 {
		return nil, errNotApplicable
	}

	for _, c := range candidates {
		relevant, err := s.judgeRelevance(ctx, req, c)
		if err != nil || !relevant {
			continue
		}
		quote, err := s.draftFreshQuote(ctx, req, c)
		if err != nil {
			continue
		}
		return &Result{
			Tier:               TierLibraryReuse,
			Citation:           citationOf(c),
			URL:                c.URL,
			QuoteText:          quote,
			VerificationMethod: model.MethodLibraryReuse,
			VerificationStatus: model.StatusVerified,
			ContentType:        model.ContentVerifiedParaphrase,
			URLVerified:        s.verifyURL(ctx, c.URL),
		}, nil
	}
	return nil, errNotApplicable
}

func citationOf(c model.VerifiedSource) string {
	parts := []string{}
	if c.Author != "" {
		parts = append(parts, c.Author)
	}
	if c.Title != "" {
		parts = append(parts, c.Title)
	}
	if c.Publisher != "" {
		parts = append(parts, c.Publisher)
	}
	if c.PublicationDate != "" {
		parts = append(parts, c.PublicationDate)
	}
	return strings.Join(parts, ", ")
}

func (s *Service) judgeRelevance(ctx context.Context, req Request, c model.VerifiedSource) (bool, error) {
	prompt := fmt.Sprintf(
		"Claim: %q\nContext: %q\nCandidate source: %q by %q (%s).\nIs this source relevant and usable evidence for this specific claim? Answer with JSON {\"relevant\": true|false}.",
		req.ClaimText, req.ClaimContext, c.Title, c.Author, c.PublicationDate)
	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: "You judge whether a previously-verified source is relevant to a new claim. Respond with strict JSON only.",
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0,
		MaxTokens:    200,
	})
	if err != nil {
		return false, err
	}
	var out struct {
		Relevant bool `json:"relevant"`
	}
	if err := llm.ExtractJSON(resp.Text, &out); err != nil {
		return false, err
	}
	return out.Relevant, nil
}

func (s *Service) draftFreshQuote(ctx context.Context, req Request, c model.VerifiedSource) (string, error) {
	prompt := fmt.Sprintf(
		"Source: %q by %q.\nPrior snippet on file: %q.\nDraft a short quote or close paraphrase from this source that directly supports or addresses this claim: %q.\nRespond with JSON {\"quote\": \"...\"}.",
		c.Title, c.Author, c.ContentSnippet, req.ClaimText)
	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: "You draft a claim-specific quote from a known source. Never invent bibliographic facts. Respond with strict JSON only.",
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0.2,
		MaxTokens:    300,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Quote string `json:"quote"`
	}
	if err := llm.ExtractJSON(resp.Text, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Quote) == "" {
		return "", fmt.Errorf("sourceverify: empty drafted quote")
	}
	return out.Quote, nil
}

// googleBooksVolume is the slice of Google Books API's response this
// tier actually uses.
type googleBooksVolume struct {
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		PreviewLink string `json:"previewLink"`
	} `json:"volumeInfo"`
	SearchInfo struct {
		TextSnippet string `json:"textSnippet"`
	} `json:"searchInfo"`
}

// tierBookCatalog is Tier 1: search Google Books by title+author and
// fetch a claim-keyword snippet, producing an exact quote with whatever
// preview link the API surfaces (spec §4.D Tier 1).
func (s *Service) tierBookCatalog(ctx context.Context, req Request) (*Result, error) {
	if s.cfg.GoogleBooksAPIKey == "" || req.Title == "" {
		return nil, errNotApplicable
	}
	q := fmt.Sprintf("intitle:%s", req.Title)
	if req.Author != "" {
		q += fmt.Sprintf("+inauthor:%s", req.Author)
	}
	endpoint := "https://www.googleapis.com/books/v1/volumes?" + url.Values{
		"q":   {q},
		"key": {s.cfg.GoogleBooksAPIKey},
	}.Encode()

	var parsed struct {
		Items []googleBooksVolume `json:"items"`
	}
	if err := s.getJSON(ctx, endpoint, &parsed); err != nil || len(parsed.Items) == 0 {
		return nil, errNotApplicable
	}

	vol := parsed.Items[0].VolumeInfo
	snippet := parsed.Items[0].SearchInfo.TextSnippet
	contentType := model.ContentUnverified
	status := model.StatusPartiallyVerified
	if snippet != "" {
		contentType = model.ContentExactQuote
		status = model.StatusVerified
	}

	return &Result{
		Tier:               TierBookCatalog,
		Citation:           fmt.Sprintf("%s, %s (%s)", strings.Join(vol.Authors, ", "), vol.Title, vol.PublishedDate),
		URL:                vol.PreviewLink,
		QuoteText:          snippet,
		VerificationMethod: model.MethodGoogleBooks,
		VerificationStatus: status,
		ContentType:        contentType,
		URLVerified:        s.verifyURL(ctx, vol.PreviewLink),
	}, nil
}

// tierAcademic is Tier 2: try Semantic Scholar, arXiv, then PubMed in
// fixed sequence (spec §4.D Tier 2 "two or three providers").
func (s *Service) tierAcademic(ctx context.Context, req Request) (*Result, error) {
	if req.Title == "" {
		return nil, errNotApplicable
	}
	if res, err := s.semanticScholar(ctx, req); err == nil {
		return res, nil
	}
	if res, err := s.arxiv(ctx, req); err == nil {
		return res, nil
	}
	if res, err := s.pubmed(ctx, req); err == nil {
		return res, nil
	}
	return nil, errNotApplicable
}

func (s *Service) semanticScholar(ctx context.Context, req Request) (*Result, error) {
	endpoint := "https://api.semanticscholar.org/graph/v1/paper/search?" + url.Values{
		"query":  {req.Title},
		"fields": {"title,authors,year,abstract,externalIds,url"},
		"limit":  {"1"},
	}.Encode()

	var parsed struct {
		Data []struct {
			Title    string `json:"title"`
			Abstract string `json:"abstract"`
			Year     int    `json:"year"`
			URL      string `json:"url"`
			Authors  []struct {
				Name string `json:"name"`
			} `json:"authors"`
		} `json:"data"`
	}
	if err := s.getJSON(ctx, endpoint, &parsed); err != nil || len(parsed.Data) == 0 {
		return nil, errNotApplicable
	}
	p := parsed.Data[0]
	names := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		names[i] = a.Name
	}
	status := model.StatusPartiallyVerified
	contentType := model.ContentUnverified
	if p.Abstract != "" {
		status = model.StatusVerified
		contentType = model.ContentVerifiedParaphrase
	}
	return &Result{
		Tier:               TierAcademic,
		Citation:           fmt.Sprintf("%s, %q (%d)", strings.Join(names, ", "), p.Title, p.Year),
		URL:                p.URL,
		QuoteText:          p.Abstract,
		VerificationMethod: model.MethodSemanticScholar,
		VerificationStatus: status,
		ContentType:        contentType,
		URLVerified:        s.verifyURL(ctx, p.URL),
	}, nil
}

// arxivFeed is the slice of arXiv's Atom search response this tier uses.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

func (e arxivEntry) authorNames() []string {
	names := make([]string, len(e.Authors))
	for i, a := range e.Authors {
		names[i] = a.Name
	}
	return names
}

func (e arxivFeed) firstAbsLink() string {
	for _, entry := range e.Entries {
		for _, l := range entry.Links {
			if l.Type == "text/html" || l.Rel == "alternate" {
				return l.Href
			}
		}
	}
	return ""
}

func (s *Service) arxiv(ctx context.Context, req Request) (*Result, error) {
	if req.Title == "" {
		return nil, errNotApplicable
	}
	endpoint := "http://export.arxiv.org/api/query?" + url.Values{
		"search_query": {"ti:\"" + req.Title + "\""},
		"max_results":  {"1"},
	}.Encode()

	var parsed arxivFeed
	if err := s.getAtomXML(ctx, endpoint, &parsed); err != nil || len(parsed.Entries) == 0 {
		return nil, errNotApplicable
	}
	entry := parsed.Entries[0]
	names := entry.authorNames()
	link := parsed.firstAbsLink()
	summary := strings.TrimSpace(entry.Summary)
	status := model.StatusPartiallyVerified
	contentType := model.ContentUnverified
	if summary != "" {
		status = model.StatusVerified
		contentType = model.ContentVerifiedParaphrase
	}
	return &Result{
		Tier:               TierAcademic,
		Citation:           fmt.Sprintf("%s, %q (arXiv)", strings.Join(names, ", "), strings.TrimSpace(entry.Title)),
		URL:                link,
		QuoteText:          summary,
		VerificationMethod: model.MethodArxiv,
		VerificationStatus: status,
		ContentType:        contentType,
		URLVerified:        s.verifyURL(ctx, link),
	}, nil
}

// getAtomXML performs a rate-limited, cached GET and decodes the Atom XML
// body into out, mirroring getJSON's shape for arXiv's non-JSON API.
func (s *Service) getAtomXML(ctx context.Context, endpoint string, out any) error {
	cacheKey := cache.CacheKey("sourceverify", endpoint)
	if s.cacheGet(cacheKey, out) {
		return nil
	}
	if err := s.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/atom+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sourceverify: %s returned %d", endpoint, resp.StatusCode)
	}
	body, err := decodeAndCapture(resp)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return err
	}
	s.cacheSet(cacheKey, out, 0)
	return nil
}

func (s *Service) pubmed(ctx context.Context, req Request) (*Result, error) {
	endpoint := "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi?" + url.Values{
		"db":      {"pubmed"},
		"term":    {req.Title},
		"retmode": {"json"},
		"retmax":  {"1"},
	}.Encode()

	var parsed struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := s.getJSON(ctx, endpoint, &parsed); err != nil || len(parsed.ESearchResult.IDList) == 0 {
		return nil, errNotApplicable
	}
	pmid := parsed.ESearchResult.IDList[0]
	link := "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	return &Result{
		Tier:               TierAcademic,
		Citation:           fmt.Sprintf("PubMed ID %s: %s", pmid, req.Title),
		URL:                link,
		VerificationMethod: model.MethodPubmed,
		VerificationStatus: model.StatusPartiallyVerified,
		ContentType:        model.ContentUnverified,
		URLVerified:        s.verifyURL(ctx, link),
	}, nil
}

// tierAncientText is Tier 3: try CCEL (patristic/classic Christian texts)
// then Perseus (classical corpus), fixed sequence (spec §4.D Tier 3).
func (s *Service) tierAncientText(ctx context.Context, req Request) (*Result, error) {
	if req.Title == "" {
		return nil, errNotApplicable
	}
	ccelURL := "https://www.ccel.org/search?q=" + url.QueryEscape(req.Title)
	if s.verifyURL(ctx, ccelURL) {
		return &Result{
			Tier:               TierAncientText,
			Citation:           fmt.Sprintf("CCEL: %s", req.Title),
			URL:                ccelURL,
			VerificationMethod: model.MethodCCEL,
			VerificationStatus: model.StatusPartiallyVerified,
			ContentType:        model.ContentUnverified,
			URLVerified:        true,
		}, nil
	}
	perseusURL := "http://www.perseus.tufts.edu/hopper/searchresults?q=" + url.QueryEscape(req.Title)
	if s.verifyURL(ctx, perseusURL) {
		return &Result{
			Tier:               TierAncientText,
			Citation:           fmt.Sprintf("Perseus Digital Library: %s", req.Title),
			URL:                perseusURL,
			VerificationMethod: model.MethodPerseus,
			VerificationStatus: model.StatusPartiallyVerified,
			ContentType:        model.ContentUnverified,
			URLVerified:        true,
		}, nil
	}
	return nil, errNotApplicable
}

// tavilyResult is the slice of Tavily's search response this tier uses.
type tavilyResult struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// tierWebSearch is Tier 4: generic web search via Tavily. It accepts the
// first result whose URL pageReachable fetches successfully; the page's
// metadata is not compared against the citation.
func (s *Service) tierWebSearch(ctx context.Context, req Request) (*Result, error) {
	if s.cfg.TavilyAPIKey == "" {
		return nil, errNotApplicable
	}
	body, err := json.Marshal(map[string]any{
		"api_key":     s.cfg.TavilyAPIKey,
		"query":       req.Title + " " + req.ClaimText,
		"max_results": 3,
	})
	if err != nil {
		return nil, errNotApplicable
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, errNotApplicable
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, errNotApplicable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errNotApplicable
	}
	var parsed tavilyResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Results) == 0 {
		return nil, errNotApplicable
	}

	for _, r := range parsed.Results {
		if !s.pageReachable(ctx, r.URL) {
			continue // unreachable result: hard rule forbids treating it as usable
		}
		return &Result{
			Tier:               TierWebSearch,
			Citation:           r.Title,
			URL:                r.URL,
			QuoteText:          r.Content,
			VerificationMethod: model.MethodWebSearch,
			VerificationStatus: model.StatusPartiallyVerified,
			ContentType:        model.ContentVerifiedParaphrase,
			URLVerified:        true,
		}, nil
	}
	return nil, errNotApplicable
}

// tierLLMFallback is Tier 5: generated from the model's training memory.
// Per the hard rule in §4.D, the URL MUST be empty rather than fabricated.
func (s *Service) tierLLMFallback(ctx context.Context, req Request) (*Result, error) {
	prompt := fmt.Sprintf(
		"No external source could be verified for this claim's supporting reference: title %q, author %q, claim %q.\n"+
			"From your training knowledge, provide the best citation you can recall for this source, and a short "+
			"quote or paraphrase if you remember one. You have NO internet access; do not invent a URL.\n"+
			"Respond with JSON {\"citation\": \"...\", \"quote\": \"...\"}.",
		req.Title, req.Author, req.ClaimText)
	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: "You are a last-resort citation recall step. Never fabricate a URL. Respond with strict JSON only.",
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0,
		MaxTokens:    300,
	})
	if err != nil {
		// Even the LLM fallback can fail transiently; this returns an
		// unverified Tier 5 result with no URL and a nil error rather than
		// propagating a pipeline-fatal error — Tier 5 is the service's own
		// safety net, not a pipeline stage.
		return &Result{
			Tier:               TierLLMFallback,
			VerificationMethod: model.MethodLLMUnverified,
			VerificationStatus: model.StatusUnverified,
			ContentType:        model.ContentUnverified,
		}, nil
	}
	var out struct {
		Citation string `json:"citation"`
		Quote    string `json:"quote"`
	}
	if err := llm.ExtractJSON(resp.Text, &out); err != nil {
		out.Citation = req.Title
	}
	return &Result{
		Tier:               TierLLMFallback,
		Citation:           out.Citation,
		URL:                "", // hard rule: never synthesize a URL
		QuoteText:          out.Quote,
		VerificationMethod: model.MethodLLMUnverified,
		VerificationStatus: model.StatusUnverified,
		ContentType:        model.ContentUnverified,
		URLVerified:        false,
	}, nil
}

// getJSON performs a rate-limited, cached GET and decodes the JSON body
// into out.
func (s *Service) getJSON(ctx context.Context, endpoint string, out any) error {
	cacheKey := cache.CacheKey("sourceverify", endpoint)
	if s.cacheGet(cacheKey, out) {
		return nil
	}
	if err := s.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sourceverify: %s returned %d", endpoint, resp.StatusCode)
	}
	body, err := decodeAndCapture(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	s.cacheSet(cacheKey, out, 0)
	return nil
}
