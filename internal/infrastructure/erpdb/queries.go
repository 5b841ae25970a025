package erpdb

import (
	"fmt"

	"github.com/erp/gateway/internal/domain/erp"
)

// CatalogVersion is bumped whenever a statement or its parameters change.
const CatalogVersion = "2026.10"

// Tables live in the ERP's PACIENTE schema, which is first on the PostgreSQL
// search path. Dates are DATE columns and clock times are HH:MM text, as in
// the legacy schema.

var dateParams = []ParamSpec{
	{Name: erp.ParamStartDate, Kind: ParamDate},
	{Name: erp.ParamEndDate, Kind: ParamDate},
}

// inRange filters col by the optional start_date and end_date bounds.
func inRange(col string) string {
	return fmt.Sprintf("(CAST(:start_date AS DATE) IS NULL OR %[1]s >= CAST(:start_date AS DATE))\n"+
		"  AND (CAST(:end_date AS DATE) IS NULL OR %[1]s <= CAST(:end_date AS DATE))", col)
}

// DefaultCatalog returns the compiled-in catalog.
func DefaultCatalog() *Catalog {
	return MustCatalog(CatalogVersion,
		patientsQuery(),
		encountersQuery(),
		billingQuery(),
		inventoryQuery(),
		admissionsQuery(),
		generalIndicatorsQuery(),
		encountersByHourQuery(),
		outpatientEncountersQuery(),
		admissionIndicatorsQuery(),
		registeredBedsQuery(),
		admissionsDischargesQuery(),
		bedOccupancyQuery(),
		operationalBedsQuery(),
		occupancyByInsurerQuery(),
		occupancyBySpecialtyQuery(),
		occupancyTrendQuery(),
	)
}

func patientsQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.DomainPatients.QueryID(),
		Version:     2,
		Description: "Registered patients, optionally by registration date",
		SQL: `SELECT p.codpac AS codigo_erp, p.nomepac AS nome, p.cpf, p.datanasc AS data_nascimento,
       p.sexo, p.fone AS telefone, p.email, p.endereco, p.cidade, p.uf AS estado, p.cep
FROM cadpac p
WHERE ` + inRange("p.datacad") + `
ORDER BY p.nomepac`,
		Params: dateParams,
	}
}

// encountersTemplate returns one CARDS_MOVIMENTACAO summary row for the
// reference day (end_date, or today) ahead of the visit rows. Each branch pads the
// other's columns with NULL. %[1]s is the reference day, %[2]s the Oracle
// FROM DUAL suffix, %[4]s and %[5]s the text and integer cast types.
const encountersTemplate = `SELECT u.componente, u.numero_atendimento, u.tipo_atendimento, u.nome_paciente,
       u.hora_entrada, u.hora_saida, u.tempo_permanencia_minutos, u.prestador, u.especialidade,
       u.convenio, u.diagnostico, u.admissoes_hoje, u.altas_hoje, u.transferencias_hoje,
       u.tempo_medio_permanencia
FROM (
  SELECT 1 AS ordem, CAST(NULL AS %[4]s) AS componente,
         a.numatend AS numero_atendimento, a.tipoatend AS tipo_atendimento,
         p.nomepac AS nome_paciente, a.datatend AS hora_entrada, a.dataalta AS hora_saida,
         a.tempoperm AS tempo_permanencia_minutos, pr.nomeprest AS prestador,
         e.nomeesp AS especialidade, c.nomeconv AS convenio, a.cid AS diagnostico,
         CAST(NULL AS %[5]s) AS admissoes_hoje, CAST(NULL AS %[5]s) AS altas_hoje,
         CAST(NULL AS %[5]s) AS transferencias_hoje,
         CAST(NULL AS DECIMAL(12, 2)) AS tempo_medio_permanencia
  FROM arqatend a
  JOIN cadpac p ON p.codpac = a.codpac
  LEFT JOIN cadprest pr ON pr.codprest = a.codprest
  LEFT JOIN cadesp e ON e.codesp = a.codesp
  LEFT JOIN cadconv c ON c.codconv = a.codconv
  WHERE %[3]s
  UNION ALL
  SELECT 0, 'CARDS_MOVIMENTACAO',
         NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL,
         (SELECT COUNT(*) FROM arqatend a WHERE a.tipoatend = 'I' AND a.datatend = %[1]s),
         (SELECT COUNT(*) FROM arqatend a WHERE a.tipoatend = 'I' AND a.dataalta = %[1]s),
         (SELECT COUNT(*) FROM arqatend a
           WHERE a.tipoatend = 'I' AND a.motivoalta = 'T' AND a.dataalta = %[1]s),
         (SELECT AVG(a.tempoperm) FROM arqatend a WHERE a.tipoatend = 'I' AND a.dataalta = %[1]s)%[2]s
) u
ORDER BY u.ordem, u.hora_entrada DESC, u.numero_atendimento DESC`

func encountersQuery() NamedQuery {
	where := inRange("a.datatend")
	render := func(today, suffix, text, integer string) string {
		return fmt.Sprintf(encountersTemplate, today, suffix, where, text, integer)
	}
	return NamedQuery{
		ID:          erp.DomainEncounters.QueryID(),
		Version:     3,
		Description: "Encounters by check-in date, led by the daily movement summary",
		SQL:         render("COALESCE(CAST(:end_date AS DATE), CURRENT_DATE)", "", "VARCHAR(30)", "INTEGER"),
		Dialects: map[erp.Engine]string{
			erp.EngineMySQL:     render("COALESCE(CAST(:end_date AS DATE), CURRENT_DATE)", "", "CHAR(30)", "SIGNED"),
			erp.EngineSQLServer: render("COALESCE(CAST(:end_date AS DATE), CAST(GETDATE() AS DATE))", "", "VARCHAR(30)", "INTEGER"),
			erp.EngineOracle:    render("COALESCE(CAST(:end_date AS DATE), TRUNC(SYSDATE))", "\n  FROM DUAL", "VARCHAR2(30)", "INTEGER"),
		},
		Params: dateParams,
	}
}

func billingQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.DomainBilling.QueryID(),
		Version:     1,
		Description: "Invoices by billing date",
		SQL: `SELECT f.numfat AS codigo_erp, f.codpac AS paciente_id, p.nomepac AS paciente_nome,
       f.datafat AS data_faturamento, f.datavenc AS data_vencimento,
       f.valtotal AS valor_total, f.valpago AS valor_pago, f.status,
       c.nomeconv AS convenio, f.tipofat AS tipo_faturamento
FROM arqfat f
JOIN cadpac p ON p.codpac = f.codpac
LEFT JOIN cadconv c ON c.codconv = f.codconv
WHERE ` + inRange("f.datafat") + `
ORDER BY f.datafat DESC, f.numfat DESC`,
		Params: dateParams,
	}
}

const inventorySelect = `SELECT e.codprod AS codigo_erp, e.codprod AS item_codigo, e.descprod AS item_descricao,
       e.grupo AS categoria, e.qtdatual AS quantidade_atual, e.qtdmin AS quantidade_minima,
       e.qtdmax AS quantidade_maxima, e.unidade AS unidade_medida, e.custounit AS valor_unitario,
       e.localizacao, e.fornecedor, e.dtultent AS data_ultima_entrada, e.dtultsai AS data_ultima_saida
FROM estoque e
`

func inventoryQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.DomainInventory.QueryID(),
		Version:     2,
		Description: "Stock positions, optionally by product group",
		SQL: inventorySelect + `WHERE (CAST(:category AS VARCHAR(100)) IS NULL OR e.grupo = CAST(:category AS VARCHAR(100)))
ORDER BY e.descprod`,
		Dialects: map[erp.Engine]string{
			erp.EngineMySQL: inventorySelect + `WHERE (CAST(:category AS CHAR(100)) IS NULL OR e.grupo = CAST(:category AS CHAR(100)))
ORDER BY e.descprod`,
		},
		Params: []ParamSpec{{Name: erp.ParamCategory, Kind: ParamString}},
	}
}

func admissionsQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.DomainAdmissions.QueryID(),
		Version:     2,
		Description: "Inpatient stays by admission date",
		SQL: `SELECT a.numatend AS codigo_erp, a.codpac AS paciente_id, p.nomepac AS paciente_nome,
       p.cpf AS paciente_cpf, a.datatend AS data_entrada, a.horaatend AS hora_entrada,
       a.dataalta AS data_saida, a.horaalta AS hora_saida, a.codlei AS leito_numero,
       l.tipolei AS leito_tipo, e.nomeesp AS especialidade, pr.nomeprest AS medico_responsavel,
       c.nomeconv AS convenio, a.origem AS tipo_internacao,
       CASE WHEN a.dataalta IS NULL THEN 'internado' ELSE 'alta' END AS status,
       (SELECT SUM(f.valtotal) FROM arqfat f WHERE f.numatend = a.numatend) AS valor_total
FROM arqatend a
JOIN cadpac p ON p.codpac = a.codpac
LEFT JOIN cadlei l ON l.codlei = a.codlei
LEFT JOIN cadesp e ON e.codesp = a.codesp
LEFT JOIN cadprest pr ON pr.codprest = a.codprest
LEFT JOIN cadconv c ON c.codconv = a.codconv
WHERE a.tipoatend = 'I'
  AND ` + inRange("a.datatend") + `
ORDER BY a.datatend DESC, a.numatend DESC`,
		Params: dateParams,
	}
}

// generalIndicatorsSelect compares the end_date day with the start_date day.
const generalIndicatorsSelect = `SELECT
  (SELECT COUNT(*) FROM arqatend a WHERE a.datatend = CAST(:end_date AS DATE)) AS atendimentos_hoje,
  (SELECT COUNT(*) FROM arqatend a WHERE a.datatend = CAST(:start_date AS DATE)) AS atendimentos_ontem,
  (SELECT COUNT(*) FROM cadlei l WHERE l.tipolei = 'UTI' AND l.tipobloq <> 'D') AS uti_total_leitos,
  (SELECT COUNT(*) FROM cadlei l WHERE l.tipolei = 'UTI' AND l.tipobloq <> 'D' AND l.status = 'O') AS uti_ocupados,
  (SELECT COUNT(*) FROM arqcir s WHERE s.datacir = CAST(:end_date AS DATE)) AS cirurgias_total,
  (SELECT COUNT(*) FROM arqcir s WHERE s.datacir = CAST(:end_date AS DATE) AND s.status = 'R') AS cirurgias_realizadas,
  (SELECT COUNT(*) FROM cadlei l WHERE l.tipolei <> 'UTI' AND l.tipobloq <> 'D') AS leitos_total,
  (SELECT COUNT(*) FROM cadlei l WHERE l.tipolei <> 'UTI' AND l.tipobloq <> 'D' AND l.status = 'L') AS leitos_disponiveis`

func generalIndicatorsQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryGeneralIndicators,
		Version:     3,
		Description: "Headline counters for the general indicators screen",
		SQL:         generalIndicatorsSelect,
		Dialects: map[erp.Engine]string{
			erp.EngineOracle: generalIndicatorsSelect + "\nFROM DUAL",
		},
		Params: dateParams,
	}
}

const encountersByHourTemplate = `SELECT %[1]s AS hora, COUNT(*) AS value
FROM arqatend a
WHERE %[2]s
GROUP BY %[1]s
ORDER BY hora`

func encountersByHourQuery() NamedQuery {
	where := inRange("a.datatend")
	return NamedQuery{
		ID:          erp.QueryEncountersByHour,
		Version:     2,
		Description: "Encounter count per check-in hour",
		SQL:         fmt.Sprintf(encountersByHourTemplate, "SUBSTRING(a.horaatend, 1, 2)", where),
		Dialects: map[erp.Engine]string{
			erp.EngineOracle: fmt.Sprintf(encountersByHourTemplate, "SUBSTR(a.horaatend, 1, 2)", where),
		},
		Params: dateParams,
	}
}

func outpatientEncountersQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryOutpatientEncounters,
		Version:     2,
		Description: "Outpatient and emergency encounters for aggregation",
		SQL: `SELECT a.numatend AS numero_atendimento,
       CASE a.tipoatend WHEN 'A' THEN 'Ambulatorial' WHEN 'E' THEN 'Emergencia' ELSE 'Outros' END AS tipo,
       c.nomeconv AS convenio,
       CASE c.tipoconv WHEN 'S' THEN 'sus' WHEN 'P' THEN 'particular' WHEN 'C' THEN 'convenio' END AS categoria_convenio,
       e.nomeesp AS especialidade, p.datanasc AS data_nascimento
FROM arqatend a
JOIN cadpac p ON p.codpac = a.codpac
LEFT JOIN cadconv c ON c.codconv = a.codconv
LEFT JOIN cadesp e ON e.codesp = a.codesp
WHERE a.tipoatend IN ('A', 'E')
  AND ` + inRange("a.datatend"),
		Params: dateParams,
	}
}

const admissionIndicatorsTemplate = `SELECT
  (SELECT COUNT(*) FROM arqatend a WHERE a.tipoatend = 'I' AND a.dataalta IS NULL) AS total_internacoes,
  (SELECT AVG(%[1]s) FROM arqatend a
    WHERE a.tipoatend = 'I' AND a.dataalta IS NOT NULL AND %[2]s) AS media_permanencia,
  (SELECT COUNT(*) FROM arqatend a WHERE a.tipoatend = 'I' AND a.datatend = CAST(:end_date AS DATE)) AS entradas_hoje,
  (SELECT COUNT(*) FROM arqatend a WHERE a.tipoatend = 'I' AND a.dataalta = CAST(:end_date AS DATE)) AS saidas_hoje,
  (SELECT COUNT(*) FROM arqatend a
    WHERE a.tipoatend = 'I' AND a.motivoalta = 'O' AND %[2]s) AS obitos,
  (SELECT COUNT(*) FROM arqatend a
    WHERE a.tipoatend = 'I' AND a.origem = 'PS' AND %[3]s) AS internacoes_ps%[4]s`

func admissionIndicatorsQuery() NamedQuery {
	discharged := inRange("a.dataalta")
	admitted := inRange("a.datatend")
	render := func(stay, suffix string) string {
		return fmt.Sprintf(admissionIndicatorsTemplate, stay, discharged, admitted, suffix)
	}
	return NamedQuery{
		ID:          erp.QueryAdmissionIndicators,
		Version:     3,
		Description: "Inpatient KPIs over the period",
		SQL:         render("a.dataalta - a.datatend", ""),
		Dialects: map[erp.Engine]string{
			erp.EngineMySQL:     render("DATEDIFF(a.dataalta, a.datatend)", ""),
			erp.EngineSQLServer: render("CAST(DATEDIFF(day, a.datatend, a.dataalta) AS DECIMAL(10, 2))", ""),
			erp.EngineOracle:    render("a.dataalta - a.datatend", "\nFROM DUAL"),
		},
		Params: dateParams,
	}
}

func registeredBedsQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryRegisteredBeds,
		Version:     1,
		Description: "Beds counted in the daily census",
		SQL:         `SELECT COUNT(*) AS total FROM cadlei WHERE leitodia = 'S' AND tipobloq <> 'D'`,
	}
}

func admissionsDischargesQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryAdmissionsDischarges,
		Version:     2,
		Description: "Daily admissions and discharges",
		SQL: `SELECT d.data, SUM(d.entradas) AS entradas, SUM(d.saidas) AS saidas
FROM (
  SELECT a.datatend AS data, 1 AS entradas, 0 AS saidas
  FROM arqatend a
  WHERE a.tipoatend = 'I' AND ` + inRange("a.datatend") + `
  UNION ALL
  SELECT a.dataalta AS data, 0 AS entradas, 1 AS saidas
  FROM arqatend a
  WHERE a.tipoatend = 'I' AND a.dataalta IS NOT NULL AND ` + inRange("a.dataalta") + `
) d
GROUP BY d.data
ORDER BY d.data`,
		Params: dateParams,
	}
}

func bedOccupancyQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryBedOccupancy,
		Version:     2,
		Description: "Bed occupancy per cost center",
		SQL: `SELECT cc.nomecc AS centro_custo, COUNT(*) AS leitos_cadastrados,
       SUM(CASE WHEN l.status = 'O' THEN 1 ELSE 0 END) AS leitos_ocupados,
       SUM(CASE WHEN l.status = 'L' THEN 1 ELSE 0 END) AS leitos_vagos,
       SUM(CASE WHEN l.leitodia = 'S' THEN 1 ELSE 0 END) AS leitos_censo,
       ROUND(100.0 * SUM(CASE WHEN l.status = 'O' THEN 1 ELSE 0 END) / COUNT(*), 2) AS taxa_ocupacao
FROM cadlei l
JOIN cadcc cc ON cc.codcc = l.codcc
WHERE l.tipobloq <> 'D'
GROUP BY cc.nomecc
ORDER BY cc.nomecc`,
	}
}

func operationalBedsQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryOperationalBeds,
		Version:     1,
		Description: "Operational bed counters",
		SQL: `SELECT SUM(CASE WHEN l.status = 'O' AND c.tipoconv IN ('P', 'C') THEN 1 ELSE 0 END) AS convenio_particular,
       SUM(CASE WHEN l.status = 'O' AND c.tipoconv = 'S' THEN 1 ELSE 0 END) AS sus,
       SUM(CASE WHEN l.status = 'O' THEN 1 ELSE 0 END) AS ocupado,
       SUM(CASE WHEN l.status = 'L' THEN 1 ELSE 0 END) AS livre,
       SUM(CASE WHEN l.leitodia = 'S' THEN 1 ELSE 0 END) AS leitos_dia_sim,
       COUNT(*) AS total_leitos
FROM cadlei l
LEFT JOIN arqatend a ON a.codlei = l.codlei AND a.tipoatend = 'I' AND a.dataalta IS NULL
LEFT JOIN cadconv c ON c.codconv = a.codconv
WHERE l.tipobloq <> 'D'`,
	}
}

func occupancyByInsurerQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryOccupancyByInsurer,
		Version:     1,
		Description: "Current inpatients per insurer",
		SQL: `SELECT c.nomeconv AS convenio, COUNT(*) AS quantidade
FROM arqatend a
JOIN cadconv c ON c.codconv = a.codconv
WHERE a.tipoatend = 'I' AND a.dataalta IS NULL
GROUP BY c.nomeconv
ORDER BY quantidade DESC, c.nomeconv`,
	}
}

func occupancyBySpecialtyQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryOccupancyBySpecialty,
		Version:     1,
		Description: "Current inpatients per specialty",
		SQL: `SELECT e.nomeesp AS especialidade, COUNT(*) AS quantidade
FROM arqatend a
JOIN cadesp e ON e.codesp = a.codesp
WHERE a.tipoatend = 'I' AND a.dataalta IS NULL
GROUP BY e.nomeesp
ORDER BY quantidade DESC, e.nomeesp`,
	}
}

func occupancyTrendQuery() NamedQuery {
	return NamedQuery{
		ID:          erp.QueryOccupancyTrend,
		Version:     1,
		Description: "Daily census occupancy",
		SQL: `SELECT s.datacenso AS data, SUM(CASE WHEN s.ocupado = 'S' THEN 1 ELSE 0 END) AS ocupacao,
       COUNT(*) AS total
FROM censo s
WHERE ` + inRange("s.datacenso") + `
GROUP BY s.datacenso
ORDER BY s.datacenso`,
		Params: dateParams,
	}
}
