// Package csp builds Content-Security-Policy header values. The request
// plane serves JSON almost everywhere, but the Swagger UI ships inline
// scripts and styles, so policies are selected per path prefix.
package csp

import "strings"

// directiveOrder fixes the rendering order so a policy string is stable
// across builds and easy to diff in response captures.
var directiveOrder = []string{
	"default-src",
	"script-src",
	"style-src",
	"img-src",
	"font-src",
	"connect-src",
	"frame-ancestors",
	"form-action",
	"base-uri",
	"object-src",
	"report-uri",
}

// Policy accumulates CSP directives. Not safe for concurrent mutation;
// build policies once at startup and treat them as read-only afterwards.
type Policy struct {
	directives map[string][]string
	reportOnly bool
}

// New returns an empty policy.
func New() *Policy {
	return &Policy{directives: make(map[string][]string)}
}

// Set assigns the sources of one directive, replacing any previous value.
func (p *Policy) Set(directive string, sources ...string) *Policy {
	p.directives[directive] = sources
	return p
}

// DefaultSrc sets the fallback for fetch directives that are not set.
func (p *Policy) DefaultSrc(sources ...string) *Policy { return p.Set("default-src", sources...) }

// ScriptSrc restricts where scripts may load from.
func (p *Policy) ScriptSrc(sources ...string) *Policy { return p.Set("script-src", sources...) }

// StyleSrc restricts where stylesheets may load from.
func (p *Policy) StyleSrc(sources ...string) *Policy { return p.Set("style-src", sources...) }

// ImgSrc restricts where images may load from.
func (p *Policy) ImgSrc(sources ...string) *Policy { return p.Set("img-src", sources...) }

// FontSrc restricts where fonts may load from.
func (p *Policy) FontSrc(sources ...string) *Policy { return p.Set("font-src", sources...) }

// ConnectSrc restricts fetch/XHR/WebSocket targets.
func (p *Policy) ConnectSrc(sources ...string) *Policy { return p.Set("connect-src", sources...) }

// FrameAncestors restricts who may embed the response in a frame.
func (p *Policy) FrameAncestors(sources ...string) *Policy {
	return p.Set("frame-ancestors", sources...)
}

// FormAction restricts form submission targets.
func (p *Policy) FormAction(sources ...string) *Policy { return p.Set("form-action", sources...) }

// BaseURI restricts what may appear in a <base> element.
func (p *Policy) BaseURI(sources ...string) *Policy { return p.Set("base-uri", sources...) }

// ObjectSrc restricts <object> and <embed> sources.
func (p *Policy) ObjectSrc(sources ...string) *Policy { return p.Set("object-src", sources...) }

// ReportOnly switches the policy to report-only mode: violations are
// reported by the browser but not enforced.
func (p *Policy) ReportOnly(enabled bool) *Policy {
	p.reportOnly = enabled
	return p
}

// HeaderName returns the response header the built value belongs in.
func (p *Policy) HeaderName() string {
	if p.reportOnly {
		return "Content-Security-Policy-Report-Only"
	}
	return "Content-Security-Policy"
}

// Build renders the policy string. An empty policy renders to "".
func (p *Policy) Build() string {
	parts := make([]string, 0, len(p.directives))
	for _, directive := range directiveOrder {
		sources := p.directives[directive]
		if len(sources) == 0 {
			continue
		}
		parts = append(parts, directive+" "+strings.Join(sources, " "))
	}
	return strings.Join(parts, "; ")
}

// APIPolicy locks down JSON endpoints: nothing loads, nothing frames.
func APIPolicy() *Policy {
	return New().
		DefaultSrc("'none'").
		ConnectSrc("'self'").
		FrameAncestors("'none'").
		BaseURI("'self'").
		FormAction("'self'")
}

// SwaggerUIPolicy allows the inline scripts, inline styles and data URIs
// the bundled Swagger UI needs while still refusing framing.
func SwaggerUIPolicy() *Policy {
	return New().
		DefaultSrc("'self'").
		ScriptSrc("'self'", "'unsafe-inline'").
		StyleSrc("'self'", "'unsafe-inline'").
		ImgSrc("'self'", "data:").
		FontSrc("'self'", "data:").
		ConnectSrc("'self'").
		FrameAncestors("'none'").
		BaseURI("'self'").
		FormAction("'self'").
		ObjectSrc("'none'")
}
