// Package dispatcher fornece adapters HTTP (net/http) para o despacho por conta.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (registry, admissão, ritmo, despacho) sem net/http
//   - infra: implementações concretas (semáforo, token bucket, transporte via proxy, stats)
//   - dispatcher (este pacote): handlers HTTP + extração da conta + tradução de erro para status/headers
//
// Fluxo de POST /dispatch:
//
//  1. Extrai a conta (header X-Account ou ?account=)
//  2. Busca a conta no registry e chama a camada application
//  3. Se recusado, responde 403/402 (permanente) ou 503 + Retry-After (transitório)
//  4. Se admitido, devolve o corpo do destino ou 502/504 nas falhas de upstream/rede
//
// Variáveis de ambiente do binário (cmd/dispatcher) controlam o comportamento,
// como ACCOUNTS_FILE, INSECURE_SKIP_VERIFY, ACCOUNT_RATE_RPS e RETRY_AFTER.
package dispatcher
