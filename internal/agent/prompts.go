package agent

import (
	"fmt"
	"strings"

	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/sandbox"
)

func withContext(contextBlock string, parts ...string) string {
	if strings.TrimSpace(contextBlock) != "" {
		parts = append([]string{"السياق:\n" + contextBlock}, parts...)
	}
	return strings.Join(parts, "\n\n")
}

func directPrompt(contextBlock, text string) string {
	return withContext(contextBlock,
		"رسالة المستخدم:\n"+text,
		"أجب بالعربية بوضوح وإيجاز، واستفد من السياق إن كان مفيداً.",
	)
}

func searchPrompt(contextBlock, text string, results []provider.SearchResult) string {
	return withContext(contextBlock,
		"سؤال المستخدم:\n"+text,
		"نتائج البحث:\n"+FormatResults(results),
		"اكتب إجابة مركّزة بالعربية تستند إلى نتائج البحث، ولا تنسخ النتائج كما هي. اذكر المصادر المهمة بإيجاز.",
	)
}

func codePrompt(contextBlock, text string, kind sandbox.Kind) string {
	lang := "python"
	if kind == sandbox.KindShell {
		lang = "bash"
	}
	return withContext(contextBlock,
		"طلب المستخدم:\n"+text,
		fmt.Sprintf("اشرح الحل باختصار ثم اكتب الكود كاملاً داخل كتلة ```%s واحدة قابلة للتنفيذ مباشرة، دون إدخال من المستخدم ودون اتصال بالشبكة.", lang),
	)
}

func stepPrompt(contextBlock, request, step string, i, n int, prior []stepResult, kind sandbox.Kind) string {
	parts := []string{
		"المهمة الأصلية:\n" + request,
		fmt.Sprintf("الخطوة الحالية (%d من %d):\n%s", i+1, n, step),
	}
	if len(prior) > 0 {
		parts = append(parts, "نتائج الخطوات السابقة:\n"+renderSteps(prior))
	}
	switch kind {
	case sandbox.KindCode:
		parts = append(parts, "نفّذ هذه الخطوة بكتابة كود داخل كتلة ```python واحدة قابلة للتنفيذ.")
	case sandbox.KindShell:
		parts = append(parts, "نفّذ هذه الخطوة بكتابة أوامر داخل كتلة ```bash واحدة.")
	default:
		parts = append(parts, "نفّذ هذه الخطوة فقط وقدّم نتيجتها بإيجاز بالعربية.")
	}
	return withContext(contextBlock, parts...)
}

func withStepResults(contextBlock string, results []stepResult) string {
	if len(results) == 0 {
		return contextBlock
	}
	block := "نتائج تنفيذ الخطة:\n" + renderSteps(results)
	if contextBlock == "" {
		return block
	}
	return contextBlock + "\n" + block
}

func renderSteps(results []stepResult) string {
	lines := make([]string, 0, len(results))
	for i, r := range results {
		out := r.Output
		if !r.OK {
			out = "(لم تكتمل)"
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n%s", i+1, r.Step, out))
	}
	return strings.Join(lines, "\n")
}
