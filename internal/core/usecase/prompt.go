package usecase

import (
	"fmt"
	"strings"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// Fixed user-visible answers for degraded paths. The conversational
// surface never sees a hard error for a single bad query.
const (
	answerNoDocuments = "我沒有找到任何相關信息，可能是因為尚未上傳任何文件。"
	answerNoMatches   = "抱歉，我找不到相關的產品資訊。"
	answerGenFailed   = "抱歉，我找到了相關資料但無法產生回應，請稍後再試。"
)

const generalPromptTemplate = `你是一個有幫助的AI助手。使用以下上下文來回答問題。

上下文:
%s

問題: %s

如果你找不到答案，請直接說不知道，不要試圖捏造答案。`

const productPromptTemplate = `你是一個產品信息專家。請使用以下上下文回答關於產品的問題。

上下文:
%s

問題: %s

請盡可能詳細地回答產品相關問題，包括產品名稱、描述、價格、類別和規格等信息。
如果找不到特定信息，請明確指出哪些信息是可用的，哪些信息不可用。`

// buildContext concatenates retrieved chunk texts with a blank-line
// separator, preserving retrieval rank order.
func buildContext(hits []domain.ScoredChunk) string {
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		parts = append(parts, hit.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

func buildPrompt(class domain.QueryClass, contextBlock, question string) string {
	if class == domain.ClassProduct {
		return fmt.Sprintf(productPromptTemplate, contextBlock, question)
	}
	return fmt.Sprintf(generalPromptTemplate, contextBlock, question)
}
