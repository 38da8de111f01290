package processors

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	strongAML = regexp.MustCompile(`\b(adversarial\s+(example|attack|perturb|training|robustness|patch)` +
		`|prompt\s+inject\w*|jailbreak\w*|red[- ]?team\w*` +
		`|model\s+extraction|model\s+inversion|membership\s+inference` +
		`|machine\s+unlearning|alignment\s+tax|safety\s+fine[- ]?tun\w*` +
		`|rlhf|constitutional\s+ai|reward\s+hack\w*` +
		`|llm\s+attack|llm\s+security|llm\s+safety` +
		`|ai\s+safety|ai\s+security|ai\s+alignment` +
		`|backdoor\s+attack\w*|data\s+poison\w*|trojan\s+attack\w*` +
		`|federated\s+learning\s+attack\w*|model\s+poison\w*` +
		`|poison\w*\s+(attack|dataset|training))\b`)

	ambiguousTerms = regexp.MustCompile(`\b(trojan|backdoor|poison\w*|evasion|spoofing|fingerprint\w*` +
		`|watermark\w*|steganograph\w*|perturbation|robust\w*)\b`)

	mlAnchors = regexp.MustCompile(`\b(neural\s+net\w*|transformer|llm|large\s+language\s+model` +
		`|deep\s+learning|dnn|cnn|rnn|lstm|gpt|bert` +
		`|diffusion\s+model|generative\s+model|classifier` +
		`|dataset|training\s+(set|data)|gradient|weight|embedding` +
		`|fine[- ]?tun\w*|prompt|token\w*|attention\s+mechanism` +
		`|pre[- ]?train\w*|foundation\s+model|vision\s+model` +
		`|machine\s+learn\w*|reinforcement\s+learn\w*)\b`)

	killList = regexp.MustCompile(`\b(fpga|hardware\s+trojan|circuit\s+design|pcb|voltage\s+glitch` +
		`|logic\s+gate|side[- ]?channel\s+power|differential\s+power\s+analysis` +
		`|buffer\s+overflow|sql\s+inject\w*|cross[- ]?site|xss|csrf` +
		`|ddos|man[- ]?in[- ]?the[- ]?middle|arp\s+spoofing|dns\s+poison` +
		`|malware\s+analysis|ransomware|cve[- ]?\d{4}|exploit\s+kit` +
		`|penetration\s+test|vulnerability\s+scan|firewall\s+rule` +
		`|elliptic\s+curve|rsa\s+encryption|aes\s+block|block\s+cipher` +
		`|hash\s+collision|digital\s+signature\s+scheme` +
		`|battery\s+(fault|diagnosis|monitor|manage)` +
		`|medical\s+diagnosis|cancer\s+detection|tumor\s+segment` +
		`|stock\s+(market|trad)|financial\s+forecast|portfolio\s+optim` +
		`|robot\w*\s+navigation|autonomous\s+vehicle\s+control` +
		`|weather\s+predict|climate\s+model|seismic\s+detect` +
		`|protein\s+fold|drug\s+discover|molecule\s+gener)\b`)

	genAIBoost = regexp.MustCompile(`\b(gpt[- ]?\d*|claude|llama[- ]?\d*|chatgpt|gemini|bard` +
		`|mistral|mixtral|phi[- ]?\d|qwen|deepseek` +
		`|generative\s+ai|language\s+model|diffusion\s+model` +
		`|text[- ]?to[- ]?image|stable\s+diffusion|midjourney|dall[- ]?e` +
		`|multimodal|vision[- ]?language|vlm)\b`)

	safetyTerms = regexp.MustCompile(`\b(alignment|misalignment|value\s+alignment` +
		`|safety\s+eval|safety\s+bench|safety\s+audit` +
		`|harmful\s+content|toxic\s+output|bias\s+detect` +
		`|guardrail|content\s+filter|moderation` +
		`|decepti\w+|manipulat\w+|persuasi\w+` +
		`|existential\s+risk|x[- ]?risk|catastroph\w+)\b`)
)

const preFilterAcceptScore = 50

// PreFilterResult is the deterministic keyword score of a document.
type PreFilterResult struct {
	Accept     bool
	Killed     bool
	Score      int
	Confidence float64
	Reasons    []string
}

// PreFilter scores title and abstract against adversarial-ML vocabulary.
// Off-domain security or application papers without ML context are killed
// outright; ambiguous terms only count next to an ML anchor.
func PreFilter(title, abstract string) PreFilterResult {
	text := strings.ToLower(title + " " + abstract)

	kills := killList.FindAllString(text, -1)
	anchors := len(mlAnchors.FindAllString(text, -1))

	if len(kills) > 0 && anchors < 2 {
		return PreFilterResult{
			Killed:     true,
			Confidence: 0.95,
			Reasons:    []string{fmt.Sprintf("kill list: %s (insufficient ML context)", uniqueJoin(kills))},
		}
	}

	score := 0
	var reasons []string

	if m := strongAML.FindAllString(text, -1); len(m) > 0 {
		score += 50
		reasons = append(reasons, "strong adversarial ML: "+uniqueJoin(m))
	}

	if m := safetyTerms.FindAllString(text, -1); len(m) > 0 {
		score += 30
		reasons = append(reasons, "safety terms: "+uniqueJoin(m))
	}

	if m := ambiguousTerms.FindAllString(text, -1); len(m) > 0 {
		if anchors >= 1 {
			score += 20 * min(len(m), 3)
			reasons = append(reasons, "anchored ambiguous terms: "+uniqueJoin(m))
		} else {
			reasons = append(reasons, "ignored ambiguous terms: "+uniqueJoin(m))
		}
	}

	if m := genAIBoost.FindAllString(text, -1); len(m) > 0 {
		score = int(float64(score) * 1.3)
		reasons = append(reasons, "generative AI boost: "+uniqueJoin(m))
	}

	if anchors >= 3 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("ML foundation: %d terms", anchors))
	}

	if len(reasons) == 0 {
		reasons = []string{"no relevant terms"}
	}

	return PreFilterResult{
		Accept:     score >= preFilterAcceptScore,
		Score:      score,
		Confidence: math.Min(float64(score)/100, 0.99),
		Reasons:    reasons,
	}
}

func uniqueJoin(matches []string) string {
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return strings.Join(out, ", ")
}
