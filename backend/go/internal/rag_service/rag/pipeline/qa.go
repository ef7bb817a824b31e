package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"EdgeRAG/backend/go/internal/llm"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
	"EdgeRAG/backend/go/pkg/logger"
)

const englishPromptTemplate = `You are a helpful assistant. Answer the question using only the information below. If the information is not sufficient, say so.

Information:
%s`

const arabicPromptTemplate = `أنت مساعد مفيد. أجب باللغة العربية فقط باستخدام المعلومات التالية. إذا لم تكن المعلومات كافية فقل ذلك.

المعلومات:
%s`

// QAPipeline 根据检索结果生成回答,并按语言对输出做最终整形。
type QAPipeline struct {
	llm          llm.LLM
	englishModel string
	arabicModel  string
	log          *logger.Logger
}

// NewQAPipeline 组装问答流水线,英语和阿拉伯语使用各自的模型。
func NewQAPipeline(client llm.LLM, englishModel, arabicModel string) *QAPipeline {
	return &QAPipeline{
		llm:          client,
		englishModel: englishModel,
		arabicModel:  arabicModel,
		log:          logger.New("qa"),
	}
}

// Run 基于检索到的分块生成回答。docs 为空时返回按语言本地化的
// "没有找到相关内容" 提示,不调用生成模型。
func (p *QAPipeline) Run(ctx context.Context, query string, lang models.Language, docs []schema.RetrievalResult, opts models.GenerateOptions) (string, error) {
	if len(docs) == 0 {
		return NoResultsMessage(lang), nil
	}

	var contextText strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&contextText, "%d. %s\n", i+1, doc.Text)
	}

	model := p.englishModel
	template := englishPromptTemplate
	if lang == models.LanguageArabic {
		model = p.arabicModel
		template = arabicPromptTemplate
	}

	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(template, contextText.String())},
		{Role: llm.RoleUser, Content: query},
	}

	raw, err := p.llm.Chat(ctx, model, messages, opts)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	p.log.WithField("model", model).WithField("docs", len(docs)).Debug("generated answer")
	return FormatAnswer(raw, lang), nil
}

// NoResultsMessage 返回检索为空时展示给用户的提示。
func NoResultsMessage(lang models.Language) string {
	if lang == models.LanguageArabic {
		return FormatAnswer("عذراً، لم أجد معلومات ذات صلة بسؤالك.", lang)
	}
	return "Sorry, I could not find any relevant information for your question."
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// arabicListReplacer 把项目符号统一为 ◼ 并把前五个西文序号换成阿拉伯文数字。
var arabicListReplacer = strings.NewReplacer(
	"•", "◼",
	"-", "◼",
	"*", "◼",
	"1.", "١.",
	"2.", "٢.",
	"3.", "٣.",
	"4.", "٤.",
	"5.", "٥.",
)

// FormatAnswer 对模型输出做展示前的最终整形。所有语言都会剥离模型可能
// 输出的 HTML 标签;阿拉伯语回答额外统一列表符号、转换序号数字、
// 把换行转为 <br> 并包进 RTL 容器,保证从右到左渲染。
func FormatAnswer(text string, lang models.Language) string {
	cleaned := htmlTagPattern.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(cleaned)
	if lang != models.LanguageArabic {
		return cleaned
	}

	cleaned = arabicListReplacer.Replace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, "\n", "<br>")
	return `<div dir="rtl" style="text-align: right; direction: rtl;">` + cleaned + `</div>`
}
