// Package engine содержит чистую логику pipeline релиза.
//
// Включает:
//   - pipeline.go     — неизменяемый шаблон из 29 шагов
//   - dependencies.go — граф DependsOn и проверка eligibility
//   - reference.go    — разбор ссылок на GitHub Actions workflow
//   - template.go     — подстановка {{...}} плейсхолдеров
//
// Пакет не делает I/O: все функции детерминированы и безопасны
// для конкурентного использования.
package engine
