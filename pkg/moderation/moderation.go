package moderation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"EngageHub.com/pkg/constants"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// 文本检查的扣分项
const (
	sensitiveWordPenalty = 0.3
	repetitionPenalty    = 0.1
	lengthPenalty        = 0.1
	urlPenalty           = 0.05
)

// Content 待审核内容，各模态均可为空
type Content struct {
	Text      string   `json:"text"`
	ImageRefs []string `json:"image_refs"`
	VideoRefs []string `json:"video_refs"`
	Links     []string `json:"links"`
}

// CheckResult 单模态检查结果
type CheckResult struct {
	Modality string   `json:"modality"` // text, image, video, link
	Score    float64  `json:"score"`    // 0~1，越高越安全
	Labels   []string `json:"labels"`
}

// Result 审核结果
type Result struct {
	Verdict string        `json:"verdict"` // APPROVE, REVIEW, REJECT
	Score   float64       `json:"score"`
	Checks  []CheckResult `json:"checks"`
	Labels  []string      `json:"labels"`
}

// Strategy 审核策略：各模态权重与结论阈值，可由配置覆盖
type Strategy struct {
	TextWeight       float64
	ImageWeight      float64
	VideoWeight      float64
	LinkWeight       float64
	ApproveThreshold float64
	ReviewThreshold  float64
}

func DefaultStrategy() Strategy {
	return Strategy{
		TextWeight:       0.4,
		ImageWeight:      0.3,
		VideoWeight:      0.2,
		LinkWeight:       0.1,
		ApproveThreshold: 0.8,
		ReviewThreshold:  0.5,
	}
}

// Enricher 外部审核能力，为图片/视频提供更精细的打分
type Enricher interface {
	ScoreImages(ctx context.Context, refs []string) (float64, []string, error)
	ScoreVideos(ctx context.Context, refs []string) (float64, []string, error)
}

// Pipeline 多模态审核管道，无副作用，可并发使用
type Pipeline struct {
	strategy         Strategy
	sensitiveWords   []string
	dangerousDomains []string
	enricher         Enricher
	enricherTimeout  time.Duration
}

func NewPipeline(strategy Strategy, sensitiveWords, dangerousDomains []string, enricher Enricher) *Pipeline {
	if strategy.ApproveThreshold <= 0 {
		strategy = DefaultStrategy()
	}
	lowered := make([]string, 0, len(sensitiveWords))
	for _, w := range sensitiveWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &Pipeline{
		strategy:         strategy,
		sensitiveWords:   lowered,
		dangerousDomains: dangerousDomains,
		enricher:         enricher,
		enricherTimeout:  constants.EnricherTimeout,
	}
}

// Moderate 对内容做全量审核，按模态打分后加权聚合出结论
func (p *Pipeline) Moderate(ctx context.Context, content *Content) *Result {
	checks := make([]CheckResult, 0, 4)

	// 1. 文本检查（本地规则）
	if content.Text != "" {
		checks = append(checks, p.checkText(content.Text))
	}

	// 2. 图片/视频检查（外部能力，超时则本地兜底放行）
	if len(content.ImageRefs) > 0 {
		score, labels := p.scoreWithEnricher(ctx, "image", func(ctx context.Context) (float64, []string, error) {
			return p.enricher.ScoreImages(ctx, content.ImageRefs)
		})
		checks = append(checks, CheckResult{Modality: "image", Score: score, Labels: labels})
	}
	if len(content.VideoRefs) > 0 {
		score, labels := p.scoreWithEnricher(ctx, "video", func(ctx context.Context) (float64, []string, error) {
			return p.enricher.ScoreVideos(ctx, content.VideoRefs)
		})
		checks = append(checks, CheckResult{Modality: "video", Score: score, Labels: labels})
	}

	// 3. 链接检查（危险域名一票否决该模态）
	if len(content.Links) > 0 {
		checks = append(checks, p.checkLinks(content.Links))
	}

	// 空内容没有可检查的模态，直接放行
	if len(checks) == 0 {
		return &Result{Verdict: constants.VerdictApprove, Score: 1.0}
	}

	// 4. 加权聚合：权重按实际出现的模态重新归一化
	score := p.aggregate(checks)

	result := &Result{
		Score:  score,
		Checks: checks,
	}
	for _, c := range checks {
		result.Labels = append(result.Labels, c.Labels...)
	}

	switch {
	case score >= p.strategy.ApproveThreshold:
		result.Verdict = constants.VerdictApprove
	case score >= p.strategy.ReviewThreshold:
		result.Verdict = constants.VerdictReview
	default:
		result.Verdict = constants.VerdictReject
	}
	return result
}

// QuickCheck 快速预检，仅做敏感词子串匹配，返回命中的词
// 命中必然导致全量审核文本分被扣，不会出现快检拦截但全量放行的倒挂
func (p *Pipeline) QuickCheck(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, w := range p.sensitiveWords {
		if strings.Contains(lower, w) {
			hits = append(hits, w)
		}
	}
	return hits
}

// QuickReject 快检阶段即可定论时返回拒绝结果，省掉一次全量审核
// 敏感词扣分是全量文本分的上界：命中词扣满后已低于复核线时，
// 全量审核只会扣得更多，结论必然相同
// 仅对纯文本生效，带媒体或链接的提交其他模态可能抬高聚合分
func (p *Pipeline) QuickReject(content *Content) *Result {
	if len(content.ImageRefs) > 0 || len(content.VideoRefs) > 0 || len(content.Links) > 0 {
		return nil
	}
	hits := p.QuickCheck(content.Text)
	if len(hits) == 0 {
		return nil
	}

	score := 1.0 - sensitiveWordPenalty*float64(len(hits))
	if score < 0 {
		score = 0
	}
	if score >= p.strategy.ReviewThreshold {
		return nil
	}

	labels := make([]string, 0, len(hits))
	for _, w := range hits {
		labels = append(labels, "sensitive:"+w)
	}
	return &Result{
		Verdict: constants.VerdictReject,
		Score:   score,
		Checks:  []CheckResult{{Modality: "text", Score: score, Labels: labels}},
		Labels:  labels,
	}
}

func (p *Pipeline) checkText(text string) CheckResult {
	score := 1.0
	var labels []string
	lower := strings.ToLower(text)

	for _, w := range p.sensitiveWords {
		if strings.Contains(lower, w) {
			score -= sensitiveWordPenalty
			labels = append(labels, "sensitive:"+w)
		}
	}

	if hasExcessiveRepetition(text) {
		score -= repetitionPenalty
		labels = append(labels, "repetition")
	}

	if utf8.RuneCountInString(text) > constants.MaxTextScanLength {
		score -= lengthPenalty
		labels = append(labels, "excessive_length")
	}

	if containsURL(lower) {
		score -= urlPenalty
		labels = append(labels, "embedded_url")
	}

	if score < 0 {
		score = 0
	}
	return CheckResult{Modality: "text", Score: score, Labels: labels}
}

func (p *Pipeline) checkLinks(links []string) CheckResult {
	score := 1.0
	var labels []string
	for _, link := range links {
		host := extractHost(link)
		for _, domain := range p.dangerousDomains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				score = 0
				labels = append(labels, "dangerous_domain:"+domain)
			}
		}
	}
	return CheckResult{Modality: "link", Score: score, Labels: labels}
}

type enricherFn func(ctx context.Context) (float64, []string, error)

// scoreWithEnricher 调用外部审核能力，超时或出错时退化为本地放行
func (p *Pipeline) scoreWithEnricher(ctx context.Context, modality string, fn enricherFn) (float64, []string) {
	if p.enricher == nil {
		return 1.0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.enricherTimeout)
	defer cancel()

	type enrichResult struct {
		score  float64
		labels []string
		err    error
	}
	ch := make(chan enrichResult, 1)
	go func() {
		score, labels, err := fn(ctx)
		ch <- enrichResult{score, labels, err}
	}()

	select {
	case <-ctx.Done():
		hlog.CtxWarnf(ctx, "moderation enricher timeout for %s, fallback to local pass", modality)
		return 1.0, nil
	case r := <-ch:
		if r.err != nil {
			hlog.CtxWarnf(ctx, "moderation enricher failed for %s: %v, fallback to local pass", modality, r.err)
			return 1.0, nil
		}
		return r.score, r.labels
	}
}

func (p *Pipeline) aggregate(checks []CheckResult) float64 {
	var weighted, totalWeight float64
	for _, c := range checks {
		w := p.weightOf(c.Modality)
		weighted += c.Score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 1.0
	}
	return weighted / totalWeight
}

func (p *Pipeline) weightOf(modality string) float64 {
	switch modality {
	case "text":
		return p.strategy.TextWeight
	case "image":
		return p.strategy.ImageWeight
	case "video":
		return p.strategy.VideoWeight
	case "link":
		return p.strategy.LinkWeight
	}
	return 0
}

// hasExcessiveRepetition 同一字符连续出现5次及以上的片段出现3次及以上
func hasExcessiveRepetition(text string) bool {
	runs := 0
	var prev rune
	runLen := 0
	for _, r := range text {
		if r == prev {
			runLen++
		} else {
			if runLen >= 5 {
				runs++
			}
			prev = r
			runLen = 1
		}
	}
	if runLen >= 5 {
		runs++
	}
	return runs >= 3
}

func containsURL(lower string) bool {
	return strings.Contains(lower, "http://") ||
		strings.Contains(lower, "https://") ||
		strings.Contains(lower, "www.")
}

// extractHost 从链接中提取主机名，不依赖url.Parse以容忍缺协议头的裸域名
func extractHost(link string) string {
	s := strings.ToLower(strings.TrimSpace(link))
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
