// Package fixtures provides reusable test data generators for integration tests.
// This package eliminates test data duplication and ensures consistent test content
// across different test suites.
package fixtures

import (
	"strings"
)

// ContentOptions configures the generated article content.
type ContentOptions struct {
	// Length is the approximate character count (target length, ±10% variance allowed)
	Length int

	// Language specifies the content language ("english" or "japanese")
	Language string

	// IncludeEmoji specifies whether to include emoji characters in the content
	IncludeEmoji bool
}

// GenerateContent generates article or transcript content based on the provided
// options. The generated text is coherent English or Japanese prose suitable for
// summarization and truncation testing.
//
// Example:
//
//	content := GenerateContent(ContentOptions{
//	    Length: 2000,
//	    Language: "english",
//	    IncludeEmoji: false,
//	})
func GenerateContent(opts ContentOptions) string {
	if opts.Language == "japanese" {
		return generateJapaneseContent(opts.Length, opts.IncludeEmoji)
	}
	return generateEnglishContent(opts.Length, opts.IncludeEmoji)
}

// GenerateShortContent generates a short article (~500 characters), useful for
// items whose body fits well inside the summarization input limit.
func GenerateShortContent() string {
	return GenerateContent(ContentOptions{
		Length:       500,
		Language:     "english",
		IncludeEmoji: false,
	})
}

// GenerateMediumContent generates a medium-length article (~2000 characters).
func GenerateMediumContent() string {
	return GenerateContent(ContentOptions{
		Length:       2000,
		Language:     "english",
		IncludeEmoji: false,
	})
}

// GenerateLongContent generates a long article (~12000 characters). The default
// summarization input limit is below this, so the text exercises truncation.
func GenerateLongContent() string {
	return GenerateContent(ContentOptions{
		Length:       12000,
		Language:     "english",
		IncludeEmoji: false,
	})
}

// GenerateContentWithEmoji generates an article that includes emoji characters.
// This is useful for testing Unicode character counting and handling.
func GenerateContentWithEmoji() string {
	return GenerateContent(ContentOptions{
		Length:       2000,
		Language:     "english",
		IncludeEmoji: true,
	})
}

var englishSentences = []string{
	"The research team released a new family of language models trained with reinforcement learning from human feedback.",
	"Benchmark results show substantial gains on coding and long-context reasoning tasks compared with the previous generation.",
	"The accompanying system card documents red-teaming methodology, refusal behavior, and known failure modes.",
	"Context windows keep growing, and retrieval-augmented generation remains the standard way to ground answers in fresh data.",
	"Interpretability researchers traced individual circuits responsible for in-context learning inside the transformer.",
	"The safety evaluation covered autonomous replication, persuasion, and cybersecurity uplift scenarios.",
	"Inference costs dropped again this quarter as providers rolled out speculative decoding and better batching.",
	"Fine-tuning on curated instruction data continues to outperform naive scaling for narrow enterprise tasks.",
	"The agentic evaluation suite measures multi-step tool use across browsing, coding, and spreadsheet manipulation.",
	"Open-weight releases narrowed the gap with frontier models on several public leaderboards this month.",
	"Constitutional methods steer model behavior with explicit written principles rather than per-example labels.",
	"Vector databases now ship hybrid search that fuses dense embeddings with classic keyword scoring.",
	"The post walks through tokenizer changes and their effect on multilingual throughput.",
	"Regulators published draft guidance on frontier model reporting thresholds and incident disclosure.",
	"Distillation into smaller checkpoints made on-device inference practical for a new class of applications.",
}

var englishEmojiSentences = []string{
	"Shipping week for the whole ecosystem 🚀✨",
	"Agents are starting to feel genuinely useful 🤖💡",
	"Evals or it didn't happen 📊📈",
	"Long context changes everything 💻🌐",
	"Safety work is engineering work 🔬🌟",
}

var japaneseSentences = []string{
	"大規模言語モデルの進化により、要約や翻訳の品質が大きく向上しています。",
	"強化学習と人間のフィードバックを組み合わせた学習手法が主流になりつつあります。",
	"検索拡張生成は、最新情報に基づいた回答を生成するための標準的な手法です。",
	"モデルの解釈可能性に関する研究が、安全性評価の基盤となっています。",
	"エージェント型のワークフローでは、複数ステップのツール利用が評価対象になります。",
	"推論コストの低下により、オンデバイス推論が現実的な選択肢になりました。",
	"オープンウェイトモデルの性能が、公開ベンチマークで着実に向上しています。",
	"長いコンテキストウィンドウは、文書全体を踏まえた推論を可能にします。",
	"埋め込みベクトルによる類似検索は、重複記事の検出にも応用できます。",
	"安全性評価では、自律複製や説得能力などのシナリオが検証されます。",
}

var japaneseEmojiSentences = []string{
	"技術革新は私たちの未来を明るくします 🚀✨",
	"AIの発展により、新しい可能性が広がっています 🤖💡",
	"データドリブンな意思決定が重要です 📊📈",
	"エコシステム全体が加速しています 💻🌐",
	"安全性研究がプロダクトを支えます 🔬🌟",
}

func generateEnglishContent(targetLength int, includeEmoji bool) string {
	return buildContent(targetLength, includeEmoji, englishSentences, englishEmojiSentences)
}

func generateJapaneseContent(targetLength int, includeEmoji bool) string {
	return buildContent(targetLength, includeEmoji, japaneseSentences, japaneseEmojiSentences)
}

// buildContent stitches sentences together until the rune count lands within
// ±10% of targetLength.
func buildContent(targetLength int, includeEmoji bool, sentences, emojiSentences []string) string {
	var builder strings.Builder
	currentLength := 0
	sentenceIndex := 0
	emojiIndex := 0

	for {
		var sentence string
		if includeEmoji && currentLength%(targetLength/5) < 100 && emojiIndex < len(emojiSentences) {
			sentence = emojiSentences[emojiIndex]
			emojiIndex++
		} else {
			sentence = sentences[sentenceIndex%len(sentences)]
			sentenceIndex++
		}

		sentenceLength := len([]rune(sentence))
		if currentLength > 0 {
			sentenceLength++ // separating space
		}
		potentialLength := currentLength + sentenceLength

		// Within 90% of target: stop before overshooting 110%.
		if currentLength >= int(float64(targetLength)*0.9) {
			if potentialLength > int(float64(targetLength)*1.1) {
				break
			}
		}

		if currentLength > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(sentence)
		currentLength = len([]rune(builder.String()))

		if currentLength >= targetLength {
			break
		}
	}

	return builder.String()
}
