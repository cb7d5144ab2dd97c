package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// NodeRecoveryConfig tunes the Drupal node-gap repair pass.
type NodeRecoveryConfig struct {
	// Sections are the site path segments whose content lives under
	// sequential /SECTION/node/N URLs (e.g. "bitacora", "tortilla").
	// Empty disables recovery.
	Sections []string
	// ProbeTimeout bounds each HEAD probe against the live site.
	ProbeTimeout time.Duration
	// MaxForwardScan limits how far past the highest discovered node
	// the scan looks for newer ones.
	MaxForwardScan int
}

// NodeFetcher downloads a single page into the download directory.
// The wget Crawler satisfies this through FetchPage.
type NodeFetcher interface {
	FetchPage(ctx context.Context, pageURL, downloadDir string) error
}

// NodeRecovery finds article nodes the recursive mirror missed.
// Drupal sites paginate their section indexes, and wget's recursion
// often stops before the deepest pages, so node N may exist on the
// live site with no N.html in the mirror. Recovery compares the two
// sets and fetches the difference.
type NodeRecovery struct {
	cfg     NodeRecoveryConfig
	fetcher NodeFetcher
	client  *http.Client
	logger  *zap.Logger
}

// NewNodeRecovery constructs a NodeRecovery. client may be nil, in
// which case a default client with the probe timeout is used.
func NewNodeRecovery(cfg NodeRecoveryConfig, fetcher NodeFetcher, client *http.Client, logger *zap.Logger) *NodeRecovery {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.MaxForwardScan <= 0 {
		cfg.MaxForwardScan = 200
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.ProbeTimeout}
	}
	return &NodeRecovery{
		cfg:     cfg,
		fetcher: fetcher,
		client:  client,
		logger:  logger,
	}
}

// Enabled reports whether any section is configured.
func (r *NodeRecovery) Enabled() bool {
	return len(r.cfg.Sections) > 0
}

// Run repairs node gaps for every configured section. Failures are
// logged and skipped; recovery is best-effort enrichment of the
// mirror, never a reason to fail the crawl stage.
func (r *NodeRecovery) Run(ctx context.Context, siteURL, downloadDir string) error {
	base, err := url.Parse(siteURL)
	if err != nil {
		return fmt.Errorf("parse site url %q: %w", siteURL, err)
	}
	baseURL := base.Scheme + "://" + base.Host

	for _, section := range r.cfg.Sections {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("node recovery interrupted: %w", err)
		}
		lastPage := r.maxIndexPage(ctx, baseURL, section)
		r.downloadIndexPages(ctx, baseURL, section, downloadDir, lastPage)
		missing := r.missingNodes(ctx, baseURL, base.Host, section, downloadDir, lastPage)
		if len(missing) == 0 {
			r.logger.Info("no missing nodes", zap.String("section", section))
			continue
		}
		r.logger.Info("fetching missing nodes",
			zap.String("section", section),
			zap.Int("count", len(missing)))
		for _, node := range missing {
			nodeURL := fmt.Sprintf("%s/%s/node/%d", baseURL, section, node)
			if err := r.fetcher.FetchPage(ctx, nodeURL, downloadDir); err != nil {
				r.logger.Warn("failed to fetch missing node",
					zap.String("url", nodeURL), zap.Error(err))
			}
		}
	}
	return nil
}

// Section indexes deeper than this are treated as probe noise. Matches
// the deepest pagination seen on the sites this was written for.
const maxIndexPageBound = 1000

// maxIndexPage finds the last live pagination page for a section by
// HEAD-probing ?page=N: a coarse upward sweep to bracket the answer,
// then a binary search inside the bracket. Returns -1 when even page 0
// is missing.
func (r *NodeRecovery) maxIndexPage(ctx context.Context, baseURL, section string) int {
	exists := func(page int) bool {
		if ctx.Err() != nil {
			return false
		}
		return r.pageExists(ctx, fmt.Sprintf("%s/%s/?page=%d", baseURL, section, page))
	}

	if !exists(0) {
		return -1
	}

	low, high := 0, maxIndexPageBound
	for _, probe := range []int{10, 100, 500, maxIndexPageBound} {
		if exists(probe) {
			low = probe
		} else {
			high = probe
			break
		}
	}
	for low < high {
		mid := (low + high + 1) / 2
		if exists(mid) {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low
}

func (r *NodeRecovery) pageExists(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// downloadIndexPages mirrors every pagination page of the section so
// the archive keeps the full article listing, not just page 0.
func (r *NodeRecovery) downloadIndexPages(ctx context.Context, baseURL, section, downloadDir string, lastPage int) {
	if lastPage < 0 {
		r.logger.Info("section index not reachable, skipping pagination",
			zap.String("section", section))
		return
	}
	r.logger.Info("downloading pagination pages",
		zap.String("section", section),
		zap.Int("pages", lastPage+1))
	for page := 0; page <= lastPage; page++ {
		if ctx.Err() != nil {
			return
		}
		pageURL := fmt.Sprintf("%s/%s/?page=%d", baseURL, section, page)
		if err := r.fetcher.FetchPage(ctx, pageURL, downloadDir); err != nil {
			r.logger.Warn("failed to fetch pagination page",
				zap.String("url", pageURL), zap.Error(err))
		}
	}
}

// missingNodes returns node numbers present on the live site but
// absent from the mirror, in ascending order.
func (r *NodeRecovery) missingNodes(ctx context.Context, baseURL, host, section, downloadDir string, lastPage int) []int {
	backup := r.mirroredNodes(downloadDir, host, section)
	if len(backup) == 0 {
		r.logger.Info("no mirrored nodes for section, skipping gap check",
			zap.String("section", section))
		return nil
	}

	live := r.discoverLiveNodes(section, baseURL, lastPage)
	if len(live) == 0 {
		r.logger.Warn("no node links found on live section page",
			zap.String("section", section))
		return nil
	}

	maxLive := 0
	for n := range live {
		if n > maxLive {
			maxLive = n
		}
	}
	// Newer nodes may exist beyond anything linked from the section
	// page; scan forward until the first miss.
	maxLive = r.scanForward(ctx, baseURL, section, maxLive)

	var missing []int
	for n := 1; n <= maxLive; n++ {
		if _, ok := backup[n]; ok {
			continue
		}
		if r.nodeExists(ctx, baseURL, section, n) {
			missing = append(missing, n)
		}
	}
	sort.Ints(missing)
	return missing
}

var nodeFileRe = regexp.MustCompile(`^(\d+)\.html$`)

// mirroredNodes scans the downloaded tree for SECTION/node/N.html
// files, checking both the bare and www-prefixed host directories.
func (r *NodeRecovery) mirroredNodes(downloadDir, host, section string) map[int]struct{} {
	nodes := make(map[int]struct{})
	for _, dir := range []string{
		filepath.Join(downloadDir, host, section, "node"),
		filepath.Join(downloadDir, "www."+host, section, "node"),
	} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			m := nodeFileRe.FindStringSubmatch(entry.Name())
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil {
				nodes[n] = struct{}{}
			}
		}
	}
	return nodes
}

// discoverLiveNodes scrapes the section index and every pagination
// page for node links.
func (r *NodeRecovery) discoverLiveNodes(section, baseURL string, lastPage int) map[int]struct{} {
	nodes := make(map[int]struct{})
	linkRe := regexp.MustCompile(`/` + regexp.QuoteMeta(section) + `/node/(\d+)`)

	c := colly.NewCollector()
	c.SetClient(r.client)
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		m := linkRe.FindStringSubmatch(e.Attr("href"))
		if m == nil {
			return
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			nodes[n] = struct{}{}
		}
	})

	for page := 0; page <= max(lastPage, 0); page++ {
		pageURL := fmt.Sprintf("%s/%s/?page=%d", baseURL, section, page)
		if err := c.Visit(pageURL); err != nil {
			r.logger.Warn("failed to scrape section index",
				zap.String("url", pageURL), zap.Error(err))
		}
	}
	c.Wait()
	return nodes
}

// scanForward walks node numbers past start until the first gap,
// bounded by MaxForwardScan. Nodes are sequential on these sites so
// the first miss is the end.
func (r *NodeRecovery) scanForward(ctx context.Context, baseURL, section string, start int) int {
	max := start
	for n := start + 1; n <= start+r.cfg.MaxForwardScan; n++ {
		if ctx.Err() != nil {
			return max
		}
		if !r.nodeExists(ctx, baseURL, section, n) {
			break
		}
		max = n
	}
	return max
}

func (r *NodeRecovery) nodeExists(ctx context.Context, baseURL, section string, node int) bool {
	return r.pageExists(ctx, fmt.Sprintf("%s/%s/node/%d", baseURL, section, node))
}

// FetchPage downloads a single page into downloadDir using a reduced
// wget invocation, mirroring the flags of the full crawl minus
// recursion.
func (c *Crawler) FetchPage(ctx context.Context, pageURL, downloadDir string) error {
	args := []string{
		"-e", "robots=off",
		"--timeout=" + strconv.Itoa(c.cfg.TimeoutSeconds),
		"--tries=" + strconv.Itoa(c.cfg.Tries),
		"--limit-rate=" + c.cfg.RateLimit,
		"--page-requisites",
		"--adjust-extension",
		"--convert-links",
		"--no-parent",
		"--span-hosts",
		"--directory-prefix=" + downloadDir,
		"--continue",
		"--quiet",
		pageURL,
	}
	code, err := c.runner.Run(ctx, c.cfg.Binary, args)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", c.cfg.Binary, err)
	}
	if code != 0 && code != exitServerError {
		return fmt.Errorf("%s exited with code %d for %s", c.cfg.Binary, code, pageURL)
	}
	return nil
}
