package analyzer

import (
	"regexp"

	"github.com/seanblong/readmegen/internal/snippet"
	"github.com/seanblong/readmegen/pkg/models"
)

// UniversalThreshold is the number of keyword matches a feature needs
// before it is reported.
const UniversalThreshold = 2

var universalFeatures = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{FeatureAuth, regexp.MustCompile(`(?i)\b(auth\w*|login|logout|password|jwt|oauth\w*|session)\b`)},
	{FeatureDatabase, regexp.MustCompile(`(?i)\b(database|sql|select\s+\S+\s+from|insert\s+into|mongo\w*|postgres\w*|mysql|sqlite|redis|orm)\b`)},
	{FeatureAPI, regexp.MustCompile(`(?i)\b(api|endpoint\w*|rest|graphql|http\w*|route\w*|request|response)\b`)},
	{FeatureUpload, regexp.MustCompile(`(?i)\b(upload\w*|multipart)\b`)},
	{FeatureEmail, regexp.MustCompile(`(?i)\b(e-?mail\w*|smtp|sendmail|mailer)\b`)},
	{FeaturePayments, regexp.MustCompile(`(?i)\b(payment\w*|stripe|paypal|checkout|invoice\w*|billing)\b`)},
	{FeatureML, regexp.MustCompile(`(?i)\b(predict\w*|neural|tensorflow|pytorch|training|inference|classifier)\b`)},
	{FeatureDataProcessing, regexp.MustCompile(`(?i)\b(csv|dataframe|etl|pipeline|transform\w*|aggregat\w*|parse\w*)\b`)},
}

// Universal counts feature keywords in files no language strategy claims.
type Universal struct {
	SnippetMaxLines int
}

func (u *Universal) Analyze(text, filename string) models.FileAnalysis {
	fa := models.FileAnalysis{
		Filename:    filename,
		Kind:        models.KindUnstructured,
		CodeExcerpt: snippet.Extract(text, filename, u.SnippetMaxLines),
	}
	for _, f := range universalFeatures {
		n := len(f.pattern.FindAllStringIndex(text, -1))
		if n <= UniversalThreshold {
			continue
		}
		if fa.FeatureCounts == nil {
			fa.FeatureCounts = make(map[string]int)
		}
		fa.FeaturesDetected = append(fa.FeaturesDetected, f.label)
		fa.FeatureCounts[f.label] = n
	}
	return fa
}
