// Package config — конфигурация процессов из переменных окружения.
package config
