package domain

var Tables = []interface{}{
	&ProbeSample{},
	&CycleSummary{},
}
