// Package gateway — клиент GitHub REST API для оркестратора.
//
// Покрывает pull requests, workflow dispatch и проверку токена/репозитория.
// Авторизация через oauth2 (статический токен проекта), повторы
// идемпотентных запросов через pester.
//
// Слияние PR программно не поддерживается: MergePullRequest всегда
// возвращает ErrMergeNotSupported.
package gateway
