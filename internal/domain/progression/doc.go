// Package progression содержит движок прогрессии FeynLearn: XP, уровни,
// серии дней (streak) и определение достижений.
//
// Все функции пакета чистые: они не обращаются к хранилищу и не читают часы.
// Вызывающая сторона передаёт текущее состояние и момент времени, получает
// новое состояние и список событий, после чего сама сохраняет результат
// (в одной транзакции на пользователя) и публикует события.
//
// # Правила
//
//   - Уровень всегда выводится из XP: Level = floor(xp / 500) + 1.
//   - Достижение по числу сессий срабатывает только при точном совпадении
//     с порогом (1, 5, 10, 25, 50, 100).
//   - За одно завершение сессии выдаётся не более одного XP-достижения:
//     побеждает наименьший пересечённый порог.
//   - Дни сравниваются как календарные даты в явно заданной зоне.
//   - Пересчёт (Recalculate) не генерирует событий.
//
// # Пример
//
//	next, events := progression.ApplySessionCompletion(current, 90, 40)
//	streak, streakEvents := progression.ApplyDailyCheck(current, now, time.UTC)
package progression
