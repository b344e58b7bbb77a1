// Package resource define el contrato genérico de recursos del gateway.
//
// Cada colección (grants, employees, invoices, ...) expone las mismas once
// operaciones canónicas a través de un Provider[E]. El Controller[E] es pura
// delegación: sólo resuelve {id, ref} con MergeIdentity y reenvía metadata,
// filtro y payload al provider. Los middlewares de transporte (scope, policy,
// cache, rate limit, validación) se declaran por operación fuera de este paquete.
package resource
