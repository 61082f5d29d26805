package service

import (
	"encoding/json"
	"fmt"

	"chat-llm/internal/domain"
)

const DefaultSystemPrompt = "you are a friendly assistant."

const citationPromptTemplate = "Please answer the question based on the reference materials \n" +
	"## Citation Rules: \n" +
	"- Please cite the context at the end of sentences when appropriate. \n" +
	"- Please use the format of citation number [number] to reference the context in corresponding parts of your answer. \n" +
	"- If a sentence comes from multiple contexts, please list all relevant citation numbers, e.g., [1][2][3][4]. \n" +
	"Remember not to group citations at the end but list them in the corresponding parts of your answer. \n" +
	"## My question is: %s\n" +
	"## Reference Materials: ```json %s ``` \n" +
	"Please respond in the same language as the user's question."

// BuildSystemPrompt arma el prompt de sistema del turno. Sin resultados de
// busqueda se usa DefaultSystemPrompt.
func BuildSystemPrompt(question string, results []domain.SearchResult) string {
	if len(results) == 0 {
		return DefaultSystemPrompt
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return DefaultSystemPrompt
	}
	return fmt.Sprintf(citationPromptTemplate, question, raw)
}
