// Package domain define contratos e tipos de domínio do dispatcher por conta.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras de
// admissão (ativo, concorrência, saldo) dos detalhes de rede e persistência.
package domain
