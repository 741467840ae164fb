package generator

import (
	"context"

	"github.com/charlesng35/longevity/internal/recommendations"
)

// Static returns canned recommendations. It is used when no model is configured.
type Static struct {
	Items map[recommendations.Kind][]recommendations.Item
}

// NewStatic returns a Static generator with a default list per kind.
func NewStatic() *Static {
	return &Static{Items: map[recommendations.Kind][]recommendations.Item{
		recommendations.KindAnalytics: {
			{"title": "Пересдайте анализ на витамин D", "description": "Контроль через 8–12 недель после начала приёма.", "category": "analytics", "priority": "medium"},
		},
		recommendations.KindDashboard: {
			{"title": "Ложитесь спать до 23:00", "description": "Стабильный режим сна улучшает восстановление.", "category": "sleep", "priority": "high"},
			{"title": "8000 шагов в день", "description": "Ежедневная ходьба снижает сердечно-сосудистые риски.", "category": "activity", "priority": "medium"},
		},
		recommendations.KindNutrition: {
			{"title": "Добавьте овощи к каждому приёму пищи", "description": "Не менее 400 г овощей и фруктов в день.", "category": "nutrition", "priority": "medium"},
		},
		recommendations.KindGoals: {
			{"title": "Снизить уровень стресса", "description": "10 минут дыхательных практик ежедневно.", "category": "mental", "priority": "low"},
		},
	}}
}

// For satisfies recommendations.GeneratorFactory.
func (s *Static) For(kind recommendations.Kind, _ any) recommendations.Generator {
	return recommendations.GeneratorFunc(func(ctx context.Context) ([]recommendations.Item, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items := s.Items[kind]
		out := make([]recommendations.Item, 0, len(items))
		for _, item := range items {
			copied := make(recommendations.Item, len(item))
			for k, v := range item {
				copied[k] = v
			}
			out = append(out, copied)
		}
		return out, nil
	})
}
