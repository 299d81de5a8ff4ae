// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - ChanPool: semáforo por conta para o limite de requisições simultâneas
//   - Store: token bucket por conta usando golang.org/x/time/rate
//   - ProxyTransport: cliente HTTP que sai pelo proxy de cada conta
//   - stats em memória, Redis, NATS e log (logrus)
//   - LoadRecordsFile: leitura do arquivo de contas (viper)
package infra
