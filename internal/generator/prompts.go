package generator

import (
	"fmt"

	"github.com/charlesng35/longevity/internal/recommendations"
)

const systemPrompt = `Ты врач превентивной медицины и специалист по долголетию. ` +
	`Отвечай только на русском языке. Не ставь диагнозов и не назначай рецептурных препаратов. ` +
	`Верни ответ строго в виде JSON-массива объектов с полями ` +
	`"title" (строка), "description" (строка), "category" (строка) и "priority" ("high", "medium" или "low"). ` +
	`Никакого текста вне массива.`

var kindPrompts = map[recommendations.Kind]string{
	recommendations.KindAnalytics: "Проанализируй результаты анализов и профиль здоровья пользователя. " +
		"Дай рекомендации по показателям, которые выходят за пределы оптимального диапазона.",
	recommendations.KindDashboard: "Составь краткий список приоритетных шагов на ближайшую неделю " +
		"для главного экрана приложения на основе профиля здоровья пользователя.",
	recommendations.KindNutrition: "Дай рекомендации по питанию с учётом профиля здоровья, " +
		"дневника питания и целей пользователя.",
	recommendations.KindGoals: "Предложи измеримые цели по здоровью и долголетию " +
		"с учётом текущего прогресса пользователя.",
}

func userPrompt(kind recommendations.Kind, payload string, maxItems int) string {
	task, ok := kindPrompts[kind]
	if !ok {
		task = kindPrompts[recommendations.KindDashboard]
	}
	return fmt.Sprintf("%s\nНе более %d рекомендаций.\n\nДанные пользователя (JSON):\n%s", task, maxItems, payload)
}
