package processors

const filterSystem = `You are an AI security research assistant helping researchers stay up to date. When in doubt, prefer accepting a paper over rejecting it. Answer with one JSON object only.`

const filterPrompt = `Decide whether this paper belongs in an AI security news digest.

Title: %s
Abstract: %s

Keyword pre-filter score: %d (%s)

Accept concrete attacks (jailbreaks, adversarial examples, prompt injection, model extraction, poisoning), security defenses, red teaming and attack benchmarks, privacy or safety methods applied to ML, and theoretical work with actionable security insight.
Reject pure optimization work, domain applications that merely use ML, general software engineering, and interpretability, fairness or efficiency work without an adversarial angle.

Respond as JSON: {"reasoning": string, "confidence_score": number between 0 and 1, "is_relevant": boolean}`

const extractSystem = `You are an expert AI security analyst. Answer with one JSON object only.`

const extractPrompt = `Extract a structured threat signature from this document.

Source ID: %s
URL: %s
Published: %s
Content:
%s

Rules:
- attack_type is one of: Jailbreak, Prompt Injection, Data Poisoning, Backdoor, Model Extraction, Adversarial Example, Other.
- modality is a list drawn from: Text, Vision, Audio, Multi-modal, Agentic.
- severity is one of: critical, high, medium, low, minimal (impact and reproducibility).
- is_theoretical is false when the paper ships code or demonstrates the attack on real systems.
- summary_tldr is at most 280 characters.

Respond as JSON: {"attack_type": string, "modality": [string], "affected_models": [string], "is_theoretical": boolean, "severity": string, "summary_tldr": string, "url": string}`

const extractRetryPrompt = `

Your previous answer was rejected: %s
Fix it and answer again.`

const critiqueSystem = `You are a strict fact-checker. Answer with one JSON object only.`

const critiquePrompt = `Check this extracted threat signature against the source text.

Source title: %s
Source text:
%s

Extraction:
%s

Reject (is_approved=false) for hallucinated models or claims, exaggerated severity, or a wrong attack type, and say exactly what to fix. Approve minor nits.

Respond as JSON: {"is_approved": boolean, "feedback": string, "score": integer 1-10}`

const curateSystem = `You are an expert technical editor for AI security. Answer with one JSON object only.`

const curatePrompt = `Write a research digest over these newly analyzed papers.

Previous digest for context:
%s

New papers:
%s

Group them into new attack research and new defense research, then add two or three sentences on research trends and highlight the most impactful findings. Only mention papers from the list.

Respond as JSON: {"headline": string, "summary_markdown": string, "highlighted_threat_ids": [string]}`

const curateReviseSuffix = `

Your previous draft was rejected by the fact-checker:
%s

Previous draft:
%s

Write a corrected digest.`

const digestCritiquePrompt = `Validate this digest against the source papers.

Source papers:
%s

Draft digest:
%s
%s

Reject (is_approved=false) for papers that are not in the source list, exaggerated severity or missing critical information. Approve minor nits.

Respond as JSON: {"is_approved": boolean, "feedback": string, "score": integer 1-10}`
